package domain

import (
	"encoding/json"
	"time"
)

// DiscoveryResult is the outcome of discovering one account's field vocabulary
type DiscoveryResult struct {
	AccountID            string        `json:"account_id"`
	Marketplace          Marketplace   `json:"marketplace"`
	Channel              ChannelKey    `json:"channel"`
	Success              bool          `json:"success"`
	FieldsDiscovered     int           `json:"fields_discovered"`
	ValueListsDiscovered int           `json:"value_lists_discovered"`
	RequiredFields       int           `json:"required_fields"`
	OptionalFields       int           `json:"optional_fields"`
	FieldsDeactivated    int           `json:"fields_deactivated"`
	ExecutionTime        time.Duration `json:"-"`
	ErrorType            ErrorKind     `json:"error_type,omitempty"`
	Error                string        `json:"error,omitempty"`
}

// MarshalJSON reports the execution time in milliseconds
func (r DiscoveryResult) MarshalJSON() ([]byte, error) {
	type plain DiscoveryResult
	return json.Marshal(struct {
		plain
		ExecutionTimeMs int64 `json:"execution_time_ms"`
	}{plain(r), r.ExecutionTime.Milliseconds()})
}

// BatchSummary aggregates a discovery run over many accounts
type BatchSummary struct {
	RunID                     string            `json:"run_id"`
	StartedAt                 time.Time         `json:"started_at"`
	CompletedAt               time.Time         `json:"completed_at"`
	ProcessedAccounts         int               `json:"processed_accounts"`
	Successful                int               `json:"successful"`
	Failed                    int               `json:"failed"`
	TotalFieldsDiscovered     int               `json:"total_fields_discovered"`
	TotalValueListsDiscovered int               `json:"total_value_lists_discovered"`
	RequiredFields            int               `json:"required_fields"`
	OptionalFields            int               `json:"optional_fields"`
	Results                   []DiscoveryResult `json:"results"`
	Errors                    []string          `json:"errors,omitempty"`
}

// Add folds one account result into the summary
func (s *BatchSummary) Add(r DiscoveryResult) {
	s.ProcessedAccounts++
	s.Results = append(s.Results, r)
	if !r.Success {
		s.Failed++
		s.Errors = append(s.Errors, r.AccountID+": "+r.Error)
		return
	}
	s.Successful++
	s.TotalFieldsDiscovered += r.FieldsDiscovered
	s.TotalValueListsDiscovered += r.ValueListsDiscovered
	s.RequiredFields += r.RequiredFields
	s.OptionalFields += r.OptionalFields
}

// DiscoveryStatistics is the dashboard view of stored schema data
type DiscoveryStatistics struct {
	FieldDefinitions FieldStats     `json:"field_definitions"`
	ValueLists       ValueListStats `json:"value_lists"`
	SyncAccounts     int            `json:"sync_accounts"`
	LastDiscovery    *time.Time     `json:"last_discovery,omitempty"`
	LastSync         *time.Time     `json:"last_sync,omitempty"`
	DiscoveryHealth  HealthStatus   `json:"discovery_health"`
}

// DiscoveryEventType distinguishes account-level from batch-level events
type DiscoveryEventType string

const (
	DiscoveryEventAccount DiscoveryEventType = "account_completed"
	DiscoveryEventBatch   DiscoveryEventType = "batch_completed"
)

// DiscoveryEvent is published when discovery finishes for an account or a batch
type DiscoveryEvent struct {
	Type        DiscoveryEventType `json:"type"`
	RunID       string             `json:"run_id,omitempty"`
	AccountID   string             `json:"account_id,omitempty"`
	Marketplace Marketplace        `json:"marketplace,omitempty"`
	Success     bool               `json:"success"`
	Result      *DiscoveryResult   `json:"result,omitempty"`
	Summary     *BatchSummary      `json:"summary,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}
