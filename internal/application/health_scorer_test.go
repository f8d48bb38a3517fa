package application

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/cache"
	"archie-core-marketplace-layer/internal/infrastructure/pubsub"
	"archie-core-marketplace-layer/internal/infrastructure/repository"

	"github.com/rs/zerolog"
)

var (
	shopifyChannel = domain.ChannelKey{Type: domain.MarketplaceShopify}
	miraklChannel  = domain.ChannelKey{Type: domain.MarketplaceMirakl, Subtype: "decathlon"}
)

// fieldSet builds total fields of which recent were verified a day before now
func fieldSet(channel domain.ChannelKey, total, recent int, now time.Time) []domain.FieldDefinition {
	out := make([]domain.FieldDefinition, total)
	for i := range out {
		verified := now.Add(-30 * 24 * time.Hour)
		if i < recent {
			verified = now.Add(-24 * time.Hour)
		}
		out[i] = domain.FieldDefinition{
			Channel:        channel,
			Code:           fmt.Sprintf("f%03d", i),
			LastVerifiedAt: verified,
			Active:         true,
		}
	}
	return out
}

func listSet(channel domain.ChannelKey, statuses ...domain.SyncStatus) []domain.ValueList {
	out := make([]domain.ValueList, len(statuses))
	for i, s := range statuses {
		out[i] = domain.ValueList{Channel: channel, Code: fmt.Sprintf("l%d", i), SyncStatus: s}
	}
	return out
}

func TestFieldHealthScore(t *testing.T) {
	now := time.Now().UTC()
	report := ScoreHealth(fieldSet(shopifyChannel, 100, 80, now), nil, now)

	if report.FieldHealth.HealthScore != 80.0 {
		t.Errorf("score = %v, want 80", report.FieldHealth.HealthScore)
	}
	if report.FieldHealth.RecentlyVerified != 80 || report.FieldHealth.Stale != 20 {
		t.Errorf("field health = %+v", report.FieldHealth)
	}
	if report.FieldHealth.Status != domain.HealthGood {
		t.Errorf("status = %s", report.FieldHealth.Status)
	}
}

func TestFieldHealthMonotonic(t *testing.T) {
	now := time.Now().UTC()
	prev := -1.0
	for recent := 0; recent <= 40; recent++ {
		score := ScoreHealth(fieldSet(shopifyChannel, 40, recent, now), nil, now).FieldHealth.HealthScore
		if score < prev {
			t.Fatalf("score fell from %v to %v at %d recent", prev, score, recent)
		}
		prev = score
	}
	if prev != 100 {
		t.Errorf("all verified = %v", prev)
	}
}

func TestEmptyStateScoresZero(t *testing.T) {
	report := ScoreHealth(nil, nil, time.Now())
	if report.FieldHealth.HealthScore != 0 || report.ValueListHealth.HealthScore != 0 || report.Overall.Status != domain.HealthPoor {
		t.Errorf("report = %+v", report)
	}
	if len(report.Recommendations) != 3 {
		t.Errorf("recommendations = %v", report.Recommendations)
	}
}

func TestOverallAveragesAndRecommends(t *testing.T) {
	now := time.Now().UTC()
	lists := listSet(shopifyChannel, domain.SyncStatusSynced, domain.SyncStatusFailed, domain.SyncStatusPending, domain.SyncStatusSynced)
	report := ScoreHealth(fieldSet(shopifyChannel, 10, 10, now), lists, now)

	if report.ValueListHealth.HealthScore != 50 || report.ValueListHealth.Failed != 1 || report.ValueListHealth.Pending != 1 {
		t.Errorf("value list health = %+v", report.ValueListHealth)
	}
	if report.Overall.Score != 75 || report.Overall.Status != domain.HealthGood {
		t.Errorf("overall = %+v", report.Overall)
	}
	if len(report.Recommendations) != 1 || !strings.HasPrefix(report.Recommendations[0], "Sync value lists") {
		t.Errorf("recommendations = %v", report.Recommendations)
	}
}

func TestBucketBoundaries(t *testing.T) {
	tests := map[float64]domain.HealthStatus{
		100: domain.HealthExcellent,
		90:  domain.HealthExcellent,
		89:  domain.HealthGood,
		70:  domain.HealthGood,
		69:  domain.HealthFair,
		50:  domain.HealthFair,
		49:  domain.HealthPoor,
		0:   domain.HealthPoor,
	}
	for score, want := range tests {
		if got := domain.HealthBucket(score); got != want {
			t.Errorf("HealthBucket(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestChannelsRankedWorstFirst(t *testing.T) {
	now := time.Now().UTC()
	fields := append(fieldSet(shopifyChannel, 10, 10, now), fieldSet(miraklChannel, 10, 2, now)...)
	lists := append(listSet(shopifyChannel, domain.SyncStatusSynced), listSet(miraklChannel, domain.SyncStatusFailed)...)

	report := ScoreHealth(fields, lists, now)
	if len(report.Channels) != 2 {
		t.Fatalf("channels = %+v", report.Channels)
	}
	if report.Channels[0].Channel != miraklChannel || report.Channels[0].Overall.Score != 10 {
		t.Errorf("worst channel = %+v", report.Channels[0])
	}
	if report.Channels[1].Overall.Status != domain.HealthExcellent {
		t.Errorf("best channel = %+v", report.Channels[1])
	}

	found := false
	for _, r := range report.Recommendations {
		if strings.Contains(r, "mirakl/decathlon") {
			found = true
		}
	}
	if !found {
		t.Errorf("no channel recommendation in %v", report.Recommendations)
	}
}

func TestHealthServiceCachesUntilDiscoveryCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schemas := repository.NewMemorySchemaRepository()
	events := pubsub.NewDiscoveryPubSub(zerolog.Nop())
	health := NewHealthService(schemas, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, zerolog.Nop())
	health.Watch(ctx, events)

	first, err := health.Overview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.FieldHealth.Total != 0 {
		t.Fatalf("initial total = %d", first.FieldHealth.Total)
	}

	now := time.Now().UTC()
	if err := schemas.UpsertFieldDefinitions(ctx, fieldSet(shopifyChannel, 4, 4, now)); err != nil {
		t.Fatal(err)
	}
	cached, _ := health.Overview(ctx)
	if cached.FieldHealth.Total != 0 {
		t.Fatalf("expected the cached report, got total %d", cached.FieldHealth.Total)
	}

	events.Publish(&domain.DiscoveryEvent{Type: domain.DiscoveryEventBatch, OccurredAt: now})

	deadline := time.Now().Add(2 * time.Second)
	for {
		report, err := health.Overview(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if report.FieldHealth.Total == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("health cache was not invalidated after discovery")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// racingCache runs onCompute once, after the report is computed and before it is stored
type racingCache struct {
	*cache.MemoryCache
	onCompute func()
}

func (c *racingCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	return c.MemoryCache.GetOrSet(ctx, key, ttl, func() ([]byte, error) {
		value, err := fn()
		if c.onCompute != nil {
			c.onCompute()
			c.onCompute = nil
		}
		return value, err
	})
}

func TestHealthServiceDropsReportRacingInvalidation(t *testing.T) {
	ctx := context.Background()
	schemas := repository.NewMemorySchemaRepository()
	rc := &racingCache{MemoryCache: cache.NewMemoryCache(time.Minute, time.Minute)}
	health := NewHealthService(schemas, rc, time.Minute, zerolog.Nop())

	now := time.Now().UTC()
	rc.onCompute = func() {
		if err := schemas.UpsertFieldDefinitions(ctx, fieldSet(shopifyChannel, 3, 3, now)); err != nil {
			t.Error(err)
		}
		health.Invalidate(ctx)
	}

	report, err := health.Overview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.FieldHealth.Total != 3 {
		t.Errorf("racing call total = %d, want 3", report.FieldHealth.Total)
	}
	if _, err := rc.Get(ctx, healthCacheKey); err == nil {
		t.Error("report computed before the invalidation stayed cached")
	}

	report, err = health.Overview(ctx)
	if err != nil || report.FieldHealth.Total != 3 {
		t.Errorf("next total = %d (%v), want 3", report.FieldHealth.Total, err)
	}
}
