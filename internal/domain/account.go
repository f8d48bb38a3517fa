package domain

import "time"

// Account is a stored marketplace connection.
// The integration layer only reads it, apart from recording connection test outcomes.
type Account struct {
	ID          string            `json:"id" bson:"_id"`
	Name        string            `json:"name" bson:"name"`
	Marketplace Marketplace       `json:"marketplace" bson:"marketplace"`
	Operator    string            `json:"operator,omitempty" bson:"operator,omitempty"` // sub-tenant for multi-operator marketplaces
	Credentials map[string]string `json:"-" bson:"credentials"`
	Settings    map[string]any    `json:"settings,omitempty" bson:"settings,omitempty"`
	Active      bool              `json:"active" bson:"active"`

	LastTestAt      *time.Time `json:"last_test_at,omitempty" bson:"last_test_at,omitempty"`
	LastTestSuccess *bool      `json:"last_test_success,omitempty" bson:"last_test_success,omitempty"`
	LastTestMessage string     `json:"last_test_message,omitempty" bson:"last_test_message,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Channel returns the schema channel the account belongs to
func (a *Account) Channel() ChannelKey {
	return ChannelKey{Type: a.Marketplace, Subtype: ResolveCredentials(a).Operator()}
}

// ConnectionTestRecord is the outcome of a connection test written back to an account
type ConnectionTestRecord struct {
	TestedAt time.Time
	Success  bool
	Message  string
}
