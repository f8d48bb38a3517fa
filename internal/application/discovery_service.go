package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDiscoveryWorkers = 4
	DefaultStaleAfter       = 30 * 24 * time.Hour
)

var (
	discoveryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_runs_total",
		Help: "Account discovery runs by marketplace and outcome",
	}, []string{"marketplace", "outcome"})

	discoveryFieldsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_fields_discovered_total",
		Help: "Field definitions discovered by marketplace",
	}, []string{"marketplace"})
)

// DiscoveryService pulls each account's field vocabulary and value lists into the schema store
type DiscoveryService struct {
	accounts ports.AccountRepository
	schemas  ports.SchemaRepository
	adapters ports.AdapterFactory
	events   ports.DiscoveryPublisher
	workers  int
	locks    *channelLocks
	now      func() time.Time
	logger   zerolog.Logger
}

// NewDiscoveryService creates a new discovery service.
// events may be nil when nothing listens for completions.
func NewDiscoveryService(
	accounts ports.AccountRepository,
	schemas ports.SchemaRepository,
	adapters ports.AdapterFactory,
	events ports.DiscoveryPublisher,
	workers int,
	logger zerolog.Logger,
) *DiscoveryService {
	if workers < 1 {
		workers = DefaultDiscoveryWorkers
	}
	return &DiscoveryService{
		accounts: accounts,
		schemas:  schemas,
		adapters: adapters,
		events:   events,
		workers:  workers,
		locks:    newChannelLocks(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "discovery").Logger(),
	}
}

// DiscoverAccount loads an account and discovers its fields
func (s *DiscoveryService) DiscoverAccount(ctx context.Context, accountID string) (domain.DiscoveryResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.DiscoveryResult{}, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return domain.DiscoveryResult{}, ErrAccountNotFound
	}
	return s.DiscoverChannelFields(ctx, account), nil
}

// DiscoverChannelFields discovers and stores the field definitions and value lists of one account.
// Failures are reported in the result.
func (s *DiscoveryService) DiscoverChannelFields(ctx context.Context, account *domain.Account) domain.DiscoveryResult {
	result := s.discover(ctx, account)
	s.record(result)
	s.publish(&domain.DiscoveryEvent{
		Type:        domain.DiscoveryEventAccount,
		AccountID:   result.AccountID,
		Marketplace: result.Marketplace,
		Success:     result.Success,
		Result:      &result,
		OccurredAt:  s.now(),
	})
	return result
}

func (s *DiscoveryService) discover(ctx context.Context, account *domain.Account) (result domain.DiscoveryResult) {
	start := time.Now()
	result = domain.DiscoveryResult{
		AccountID:   account.ID,
		Marketplace: account.Marketplace,
		Channel:     account.Channel(),
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("accountId", account.ID).
				Interface("panic", r).
				Msg("Discovery panicked")
			result = fail(result, domain.ErrException, fmt.Sprintf("discovery panicked: %v", r))
		}
		result.ExecutionTime = time.Since(start)
	}()

	adapter, err := s.adapters.ForAccount(account)
	if err != nil {
		return fail(result, domain.ErrConfiguration, err.Error())
	}
	if missing := adapter.ValidateConfiguration(); len(missing) > 0 {
		e := domain.MissingCredentialsError(account.Marketplace, missing)
		return fail(result, e.Kind, e.Message)
	}

	attrs := adapter.GetProductAttributes(ctx)
	if !attrs.Ok() {
		return fail(result, attrs.Err.Kind, attrs.Err.Message)
	}
	lists := adapter.GetValueLists(ctx)
	if !lists.Ok() {
		s.markListsFailed(ctx, result.Channel, lists.Err.Message)
		return fail(result, lists.Err.Kind, lists.Err.Message)
	}

	now := s.now()
	valueLists := NormalizeValueLists(result.Channel, lists.Data, now)
	fields := NormalizeFields(result.Channel, attrs.Data, valueLists, now)

	deactivated, err := s.persist(ctx, result.Channel, fields, valueLists)
	if err != nil {
		s.logger.Error().Err(err).Str("accountId", account.ID).Msg("Failed to store discovered schema")
		return fail(result, domain.ErrException, err.Error())
	}

	result.Success = true
	result.FieldsDeactivated = deactivated
	result.FieldsDiscovered = len(fields)
	result.ValueListsDiscovered = len(valueLists)
	for _, f := range fields {
		if f.Required {
			result.RequiredFields++
		} else {
			result.OptionalFields++
		}
	}

	s.logger.Info().
		Str("accountId", account.ID).
		Str("channel", result.Channel.String()).
		Int("fields", result.FieldsDiscovered).
		Int("valueLists", result.ValueListsDiscovered).
		Int("deactivated", deactivated).
		Msg("Discovery completed")
	return result
}

// persist writes value lists before fields so every stored list reference resolves,
// then deactivates the channel's fields this fetch no longer returned.
// An empty fetch deactivates nothing.
func (s *DiscoveryService) persist(ctx context.Context, channel domain.ChannelKey, fields []domain.FieldDefinition, lists []domain.ValueList) (int, error) {
	unlock := s.locks.lock(channel.String())
	defer unlock()

	if err := s.schemas.UpsertValueLists(ctx, lists); err != nil {
		return 0, fmt.Errorf("failed to upsert value lists: %w", err)
	}
	if err := s.schemas.UpsertFieldDefinitions(ctx, fields); err != nil {
		return 0, fmt.Errorf("failed to upsert field definitions: %w", err)
	}
	if len(fields) == 0 {
		return 0, nil
	}

	keep := make([]domain.FieldKey, len(fields))
	for i, f := range fields {
		keep[i] = f.Key()
	}
	n, err := s.schemas.DeactivateMissingFields(ctx, channel, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate missing fields: %w", err)
	}
	return n, nil
}

// markListsFailed records a value list fetch failure on the channel's stored lists
func (s *DiscoveryService) markListsFailed(ctx context.Context, channel domain.ChannelKey, message string) {
	unlock := s.locks.lock(channel.String())
	defer unlock()

	n, err := s.schemas.MarkValueListsFailed(context.WithoutCancel(ctx), channel, message)
	if err != nil {
		s.logger.Error().Err(err).Str("channel", channel.String()).Msg("Failed to record value list sync failure")
		return
	}
	if n > 0 {
		s.logger.Warn().
			Str("channel", channel.String()).
			Int("valueLists", n).
			Str("error", message).
			Msg("Value lists marked failed")
	}
}

func fail(r domain.DiscoveryResult, kind domain.ErrorKind, message string) domain.DiscoveryResult {
	r.Success = false
	r.ErrorType = kind
	r.Error = message
	r.FieldsDiscovered = 0
	r.ValueListsDiscovered = 0
	r.RequiredFields = 0
	r.OptionalFields = 0
	return r
}

// DiscoverAllChannels runs discovery for every active account
func (s *DiscoveryService) DiscoverAllChannels(ctx context.Context) (domain.BatchSummary, error) {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("failed to list active accounts: %w", err)
	}
	return s.runBatch(ctx, accounts), nil
}

// SyncOutdated runs discovery for active accounts whose channel has no field verified within staleAfter
func (s *DiscoveryService) SyncOutdated(ctx context.Context, staleAfter time.Duration) (domain.BatchSummary, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("failed to list active accounts: %w", err)
	}

	cutoff := s.now().Add(-staleAfter)
	outdated := make([]*domain.Account, 0, len(accounts))
	verified := map[domain.ChannelKey]*time.Time{}
	for _, account := range accounts {
		channel := account.Channel()
		last, seen := verified[channel]
		if !seen {
			last, err = s.schemas.LastVerifiedAt(ctx, channel)
			if err != nil {
				s.logger.Warn().Err(err).Str("channel", channel.String()).Msg("Failed to read last verification, treating channel as outdated")
				last = nil
			}
			verified[channel] = last
		}
		if last == nil || last.Before(cutoff) {
			outdated = append(outdated, account)
		}
	}

	s.logger.Info().
		Int("accounts", len(accounts)).
		Int("outdated", len(outdated)).
		Dur("staleAfter", staleAfter).
		Msg("Syncing outdated channels")

	return s.runBatch(ctx, outdated), nil
}

// runBatch discovers accounts on a bounded worker pool and reports results in account order.
// Once ctx is done no new account is started; in-flight accounts run to completion.
func (s *DiscoveryService) runBatch(ctx context.Context, accounts []*domain.Account) domain.BatchSummary {
	summary := domain.BatchSummary{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		Results:   []domain.DiscoveryResult{},
	}

	results := make([]*domain.DiscoveryResult, len(accounts))
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, account := range accounts {
		if ctx.Err() != nil {
			s.logger.Warn().Int("skipped", len(accounts)-i).Msg("Discovery batch cancelled, not starting remaining accounts")
			break
		}
		g.Go(func() error {
			r := s.DiscoverChannelFields(work, account)
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			summary.Add(*r)
		}
	}
	summary.CompletedAt = s.now()

	s.logger.Info().
		Str("runId", summary.RunID).
		Int("processed", summary.ProcessedAccounts).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("fields", summary.TotalFieldsDiscovered).
		Msg("Discovery batch completed")

	s.publish(&domain.DiscoveryEvent{
		Type:       domain.DiscoveryEventBatch,
		RunID:      summary.RunID,
		Success:    summary.Failed == 0,
		Summary:    &summary,
		OccurredAt: summary.CompletedAt,
	})
	return summary
}

// GetDiscoveryStatistics summarizes the stored schema data
func (s *DiscoveryService) GetDiscoveryStatistics(ctx context.Context) (domain.DiscoveryStatistics, error) {
	fields, err := s.schemas.ListFieldDefinitions(ctx, nil)
	if err != nil {
		return domain.DiscoveryStatistics{}, fmt.Errorf("failed to list field definitions: %w", err)
	}
	lists, err := s.schemas.ListValueLists(ctx, nil)
	if err != nil {
		return domain.DiscoveryStatistics{}, fmt.Errorf("failed to list value lists: %w", err)
	}
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return domain.DiscoveryStatistics{}, fmt.Errorf("failed to list active accounts: %w", err)
	}

	now := s.now()
	stats := domain.DiscoveryStatistics{
		FieldDefinitions: FieldStatistics(fields, now),
		ValueLists:       ValueListStatistics(lists),
		SyncAccounts:     len(accounts),
	}
	stats.LastDiscovery = stats.FieldDefinitions.LastVerifiedAt
	stats.LastSync = stats.ValueLists.LastSyncedAt
	stats.DiscoveryHealth = ScoreHealth(fields, lists, now).Overall.Status
	return stats, nil
}

func (s *DiscoveryService) record(r domain.DiscoveryResult) {
	outcome := "success"
	if !r.Success {
		outcome = "failure"
	}
	discoveryRunsTotal.WithLabelValues(string(r.Marketplace), outcome).Inc()
	if r.FieldsDiscovered > 0 {
		discoveryFieldsTotal.WithLabelValues(string(r.Marketplace)).Add(float64(r.FieldsDiscovered))
	}
}

func (s *DiscoveryService) publish(event *domain.DiscoveryEvent) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

// NormalizeValueLists converts raw value lists into stored records.
// Codes are trimmed, empty codes dropped and duplicate codes collapse to the last occurrence.
func NormalizeValueLists(channel domain.ChannelKey, raw []domain.RawValueList, now time.Time) []domain.ValueList {
	index := map[string]int{}
	out := make([]domain.ValueList, 0, len(raw))
	for _, rl := range raw {
		code := strings.TrimSpace(rl.Code)
		if code == "" {
			continue
		}
		values := uniqueValues(rl.Values)
		vl := domain.ValueList{
			Channel:      channel,
			Code:         code,
			Name:         firstNonEmpty(strings.TrimSpace(rl.Name), code),
			Description:  strings.TrimSpace(rl.Description),
			Values:       values,
			ValueCount:   len(values),
			DiscoveredAt: now,
			LastSyncedAt: now,
			SyncStatus:   domain.SyncStatusSynced,
		}
		if i, ok := index[code]; ok {
			out[i] = vl
			continue
		}
		index[code] = len(out)
		out = append(out, vl)
	}
	return out
}

// NormalizeFields converts raw fields into stored definitions.
// A list-typed field without a list reference is linked to the value list sharing its code.
func NormalizeFields(channel domain.ChannelKey, raw []domain.RawField, lists []domain.ValueList, now time.Time) []domain.FieldDefinition {
	known := make(map[string]bool, len(lists))
	for _, vl := range lists {
		known[vl.Code] = true
	}

	index := map[string]int{}
	out := make([]domain.FieldDefinition, 0, len(raw))
	for _, rf := range raw {
		code := strings.TrimSpace(rf.Code)
		if code == "" {
			continue
		}
		category := strings.TrimSpace(rf.Category)
		fd := domain.FieldDefinition{
			Channel:         channel,
			Category:        category,
			Code:            code,
			Label:           firstNonEmpty(strings.TrimSpace(rf.Label), code),
			Description:     strings.TrimSpace(rf.Description),
			ValueType:       domain.NormalizeValueType(rf.Type),
			Required:        rf.Required,
			ValidationRules: copyRules(rf.Validation),
			ValueListCode:   strings.TrimSpace(rf.ValueListCode),
			DiscoveredAt:    now,
			LastVerifiedAt:  now,
			Active:          true,
		}
		if fd.ValueListCode != "" {
			fd.ValueType = domain.ValueTypeList
		} else if fd.ValueType == domain.ValueTypeList && known[code] {
			fd.ValueListCode = code
		}

		key := category + "\x00" + code
		if i, ok := index[key]; ok {
			out[i] = fd
			continue
		}
		index[key] = len(out)
		out = append(out, fd)
	}
	return out
}

func uniqueValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func copyRules(rules map[string]string) map[string]string {
	if len(rules) == 0 {
		return nil
	}
	out := make(map[string]string, len(rules))
	for k, v := range rules {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// channelLocks serializes schema writes per channel inside one process
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*channelLock
}

type channelLock struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: map[string]*channelLock{}}
}

func (c *channelLocks) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &channelLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
