package operations

import (
	"context"
	"time"

	"archie-core-marketplace-layer/internal/domain"
)

// settings is the configuration shared by every bulk operation
type settings struct {
	batchSize int
	validate  bool
	dryRun    bool
}

func defaultSettings() settings {
	return settings{batchSize: DefaultBatchSize, validate: true}
}

type bulkStep[T any] struct {
	key      func(T) string
	validate func(T) *domain.Error
	call     func(ctx context.Context, item T) (string, *domain.Error)
}

// runBulk processes items in chunks of batchSize.
// ctx is checked between chunks; a started chunk always completes.
func runBulk[T any](ctx context.Context, cfg settings, items []T, step bulkStep[T]) BulkResult {
	start := time.Now()
	result := BulkResult{Items: make([]ItemResult, 0, len(items))}
	work := context.WithoutCancel(ctx)

	for from := 0; from < len(items); from += cfg.batchSize {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		to := min(from+cfg.batchSize, len(items))
		for _, item := range items[from:to] {
			result.add(runItem(work, cfg, item, step))
		}
	}

	result.Success = result.FailedCount == 0
	result.Duration = time.Since(start)
	return result
}

func runItem[T any](ctx context.Context, cfg settings, item T, step bulkStep[T]) ItemResult {
	out := ItemResult{Key: step.key(item)}
	if cfg.validate || cfg.dryRun {
		if err := step.validate(item); err != nil {
			out.Error = err
			return out
		}
	}
	if cfg.dryRun {
		out.Success = true
		out.DryRun = true
		return out
	}
	id, err := step.call(ctx, item)
	if err != nil {
		out.Error = err
		return out
	}
	out.ID = id
	out.Success = true
	return out
}

func invalid(message string) *domain.Error {
	return domain.NewError(domain.ErrValidation, message)
}
