package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/pubsub"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/rs/zerolog"
)

const (
	// RecentlyVerifiedWindow is how old a field verification may be and still count as recent
	RecentlyVerifiedWindow = 7 * 24 * time.Hour

	DefaultHealthCacheTTL = 5 * time.Minute
	healthCacheKey        = "health:overview"

	healthRecommendationThreshold = 70
	overallCriticalThreshold      = 50
)

// ScoreHealth computes the health report of the given schema state. It has no side effects.
func ScoreHealth(fields []domain.FieldDefinition, lists []domain.ValueList, now time.Time) domain.HealthReport {
	report := domain.HealthReport{
		FieldHealth:     scoreFields(fields, now),
		ValueListHealth: scoreValueLists(lists),
		Channels:        []domain.ChannelHealth{},
		GeneratedAt:     now,
	}
	report.Overall = overall(report.FieldHealth, report.ValueListHealth)

	byChannel := map[domain.ChannelKey]*channelState{}
	channelOf := func(key domain.ChannelKey) *channelState {
		st, ok := byChannel[key]
		if !ok {
			st = &channelState{}
			byChannel[key] = st
		}
		return st
	}
	for _, f := range fields {
		st := channelOf(f.Channel)
		st.fields = append(st.fields, f)
	}
	for _, vl := range lists {
		st := channelOf(vl.Channel)
		st.lists = append(st.lists, vl)
	}
	for key, st := range byChannel {
		ch := domain.ChannelHealth{
			Channel:         key,
			FieldHealth:     scoreFields(st.fields, now),
			ValueListHealth: scoreValueLists(st.lists),
		}
		ch.Overall = overall(ch.FieldHealth, ch.ValueListHealth)
		report.Channels = append(report.Channels, ch)
	}
	sort.Slice(report.Channels, func(i, j int) bool {
		a, b := report.Channels[i], report.Channels[j]
		if a.Overall.Score != b.Overall.Score {
			return a.Overall.Score < b.Overall.Score
		}
		return a.Channel.String() < b.Channel.String()
	})

	report.Recommendations = recommendations(report)
	return report
}

type channelState struct {
	fields []domain.FieldDefinition
	lists  []domain.ValueList
}

func scoreFields(fields []domain.FieldDefinition, now time.Time) domain.FieldHealth {
	h := domain.FieldHealth{Total: len(fields)}
	for _, f := range fields {
		if isRecentlyVerified(f, now) {
			h.RecentlyVerified++
		}
	}
	h.Stale = h.Total - h.RecentlyVerified
	h.HealthScore = percent(h.RecentlyVerified, h.Total)
	h.Status = domain.HealthBucket(h.HealthScore)
	return h
}

func scoreValueLists(lists []domain.ValueList) domain.ValueListHealth {
	h := domain.ValueListHealth{Total: len(lists)}
	for _, vl := range lists {
		switch vl.SyncStatus {
		case domain.SyncStatusSynced:
			h.Synced++
		case domain.SyncStatusFailed:
			h.Failed++
		default:
			h.Pending++
		}
	}
	h.HealthScore = percent(h.Synced, h.Total)
	h.Status = domain.HealthBucket(h.HealthScore)
	return h
}

func overall(f domain.FieldHealth, v domain.ValueListHealth) domain.OverallHealth {
	score := (f.HealthScore + v.HealthScore) / 2
	return domain.OverallHealth{Score: score, Status: domain.HealthBucket(score)}
}

func isRecentlyVerified(f domain.FieldDefinition, now time.Time) bool {
	return !f.LastVerifiedAt.IsZero() && now.Sub(f.LastVerifiedAt) <= RecentlyVerifiedWindow
}

// percent returns part/total*100, or 0 for an empty total
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func recommendations(r domain.HealthReport) []string {
	out := []string{}
	if r.FieldHealth.HealthScore < healthRecommendationThreshold {
		if r.FieldHealth.Total == 0 {
			out = append(out, "No field definitions stored yet, run field discovery for your active accounts")
		} else {
			out = append(out, fmt.Sprintf("Run field discovery: %d of %d field definitions have not been verified in the last 7 days",
				r.FieldHealth.Stale, r.FieldHealth.Total))
		}
	}
	if r.ValueListHealth.HealthScore < healthRecommendationThreshold {
		if r.ValueListHealth.Total == 0 {
			out = append(out, "No value lists stored yet, sync value lists for marketplaces with constrained fields")
		} else {
			out = append(out, fmt.Sprintf("Sync value lists: %d failed and %d pending of %d",
				r.ValueListHealth.Failed, r.ValueListHealth.Pending, r.ValueListHealth.Total))
		}
	}
	if r.Overall.Score < overallCriticalThreshold {
		out = append(out, "Check marketplace credentials and connectivity for accounts with failing discovery")
	}
	for _, ch := range r.Channels {
		if ch.Overall.Score < overallCriticalThreshold && len(r.Channels) > 1 {
			out = append(out, fmt.Sprintf("Channel %s is in %s health, rerun discovery for its accounts", ch.Channel, ch.Overall.Status))
		}
	}
	return out
}

// HealthService serves health reports memoized in a cache
type HealthService struct {
	schemas ports.SchemaRepository
	cache   ports.Cache
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	// generation counts invalidations
	generation atomic.Uint64
}

// NewHealthService creates a new health service
func NewHealthService(schemas ports.SchemaRepository, cache ports.Cache, ttl time.Duration, logger zerolog.Logger) *HealthService {
	if ttl <= 0 {
		ttl = DefaultHealthCacheTTL
	}
	return &HealthService{
		schemas: schemas,
		cache:   cache,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// Overview returns the health report, computing it at most once per cache TTL.
// A report computed while an invalidation happened is not kept in the cache.
func (s *HealthService) Overview(ctx context.Context) (domain.HealthReport, error) {
	gen := s.generation.Load()
	data, err := s.cache.GetOrSet(ctx, healthCacheKey, s.ttl, func() ([]byte, error) {
		report, err := s.compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(report)
	})
	if err != nil {
		return domain.HealthReport{}, err
	}
	if s.generation.Load() != gen {
		if err := s.cache.Delete(ctx, healthCacheKey); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to drop stale health report")
		}
		return s.compute(ctx)
	}

	var report domain.HealthReport
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.HealthReport{}, fmt.Errorf("failed to decode cached health report: %w", err)
	}
	return report, nil
}

func (s *HealthService) compute(ctx context.Context) (domain.HealthReport, error) {
	fields, err := s.schemas.ListFieldDefinitions(ctx, nil)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("failed to list field definitions: %w", err)
	}
	lists, err := s.schemas.ListValueLists(ctx, nil)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("failed to list value lists: %w", err)
	}
	return ScoreHealth(fields, lists, s.now()), nil
}

// Invalidate drops the cached report
func (s *HealthService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.Delete(ctx, healthCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate health cache")
	}
}

// Watch invalidates the cached report whenever discovery completes, until ctx is done
func (s *HealthService) Watch(ctx context.Context, events *pubsub.DiscoveryPubSub) {
	ch := events.Subscribe(ctx, nil)
	go func() {
		for {
			select {
			case <-ch.Done:
				return
			case event, ok := <-ch.Events:
				if !ok {
					return
				}
				if event.Success || event.Type == domain.DiscoveryEventBatch {
					s.Invalidate(context.Background())
				}
			}
		}
	}()
}
