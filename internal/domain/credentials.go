package domain

import "strings"

// Credentials is a read-only view of an account's credential bag scoped to one marketplace.
// Lookups never fail; callers check ValidateRequired before making live calls.
type Credentials struct {
	marketplace Marketplace
	values      map[string]string
	settings    map[string]any
	operator    string
}

// ResolveCredentials derives the credentials of an account.
// The operator comes from the account, falling back to the "operator" credential key.
func ResolveCredentials(account *Account) Credentials {
	if account == nil {
		return Credentials{values: map[string]string{}, settings: map[string]any{}}
	}

	values := make(map[string]string, len(account.Credentials))
	for k, v := range account.Credentials {
		values[k] = strings.TrimSpace(v)
	}
	settings := make(map[string]any, len(account.Settings))
	for k, v := range account.Settings {
		settings[k] = v
	}

	operator := strings.TrimSpace(account.Operator)
	if operator == "" {
		operator = values["operator"]
	}

	return Credentials{
		marketplace: account.Marketplace,
		values:      values,
		settings:    settings,
		operator:    operator,
	}
}

func (c Credentials) Type() Marketplace {
	return c.marketplace
}

func (c Credentials) Operator() string {
	return c.operator
}

// Has reports whether the key is present with a non-empty value.
// The operator key is also satisfied by the account's operator.
func (c Credentials) Has(key string) bool {
	if key == "operator" {
		return c.operator != ""
	}
	return c.values[key] != ""
}

// Get returns the value for key or def when it is missing or empty
func (c Credentials) Get(key, def string) string {
	if v := c.values[key]; v != "" {
		return v
	}
	return def
}

// Setting returns a raw account setting
func (c Credentials) Setting(key string) (any, bool) {
	v, ok := c.settings[key]
	return v, ok
}

// SettingString returns a string setting or def
func (c Credentials) SettingString(key, def string) string {
	if v, ok := c.settings[key].(string); ok && v != "" {
		return v
	}
	return def
}

// SettingBool returns a boolean setting or def
func (c Credentials) SettingBool(key string, def bool) bool {
	if v, ok := c.settings[key].(bool); ok {
		return v
	}
	return def
}

// ValidateRequired returns the keys that are missing, in the order they were asked for
func (c Credentials) ValidateRequired(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if !c.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Masked returns every credential with its value masked down to the last four characters
func (c Credentials) Masked() map[string]string {
	masked := make(map[string]string, len(c.values))
	for k, v := range c.values {
		masked[k] = MaskSecret(v)
	}
	return masked
}

// MaskSecret hides all but the last four characters of a secret
func MaskSecret(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return "****" + v[len(v)-4:]
}
