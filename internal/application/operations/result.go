package operations

import (
	"encoding/json"
	"time"

	"archie-core-marketplace-layer/internal/domain"
)

const (
	DefaultBatchSize = 50
	DefaultPageSize  = 50

	// maxScanPages bounds how many marketplace pages one filtered repository call reads
	maxScanPages = 10
)

// ItemResult is the outcome of one item of a bulk operation
type ItemResult struct {
	Key     string        `json:"key"`
	ID      string        `json:"id,omitempty"`
	Success bool          `json:"success"`
	DryRun  bool          `json:"dry_run,omitempty"`
	Error   *domain.Error `json:"error,omitempty"`
}

// BulkResult aggregates a bulk operation. Success holds only when no item failed.
type BulkResult struct {
	Success        bool          `json:"success"`
	ProcessedCount int           `json:"processed_count"`
	FailedCount    int           `json:"failed_count"`
	Items          []ItemResult  `json:"items"`
	Cancelled      bool          `json:"cancelled,omitempty"`
	Duration       time.Duration `json:"-"`
}

// MarshalJSON reports the duration in milliseconds
func (r BulkResult) MarshalJSON() ([]byte, error) {
	type plain BulkResult
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"duration_ms"`
	}{plain(r), r.Duration.Milliseconds()})
}

// Failures returns the failed items
func (r BulkResult) Failures() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items {
		if !item.Success {
			out = append(out, item)
		}
	}
	return out
}

func (r *BulkResult) add(item ItemResult) {
	r.Items = append(r.Items, item)
	if item.Success {
		r.ProcessedCount++
	} else {
		r.FailedCount++
	}
}
