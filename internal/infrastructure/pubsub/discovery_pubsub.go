package pubsub

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const subscriberBuffer = 32

// DiscoveryEventChannel is one subscription. Events is closed when the subscription ends.
type DiscoveryEventChannel struct {
	ID     string
	Filter *DiscoveryEventFilter
	Events chan *domain.DiscoveryEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// DiscoveryEventFilter filters discovery events
type DiscoveryEventFilter struct {
	Types       []domain.DiscoveryEventType // empty matches every type
	Marketplace domain.Marketplace          // batch events always match
}

func (f *DiscoveryEventFilter) matches(event *domain.DiscoveryEvent) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, event.Type) {
		return false
	}
	if f.Marketplace == "" || event.Type == domain.DiscoveryEventBatch {
		return true
	}
	return event.Marketplace == f.Marketplace
}

// Stats is a snapshot of pub/sub activity
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// DiscoveryPubSub fans discovery events out to in-process subscribers
type DiscoveryPubSub struct {
	mu        sync.RWMutex
	channels  map[string]*DiscoveryEventChannel
	published atomic.Int64
	dropped   atomic.Int64
	logger    zerolog.Logger
}

// NewDiscoveryPubSub creates a new discovery pub/sub system
func NewDiscoveryPubSub(logger zerolog.Logger) *DiscoveryPubSub {
	return &DiscoveryPubSub{
		channels: make(map[string]*DiscoveryEventChannel),
		logger:   logger.With().Str("component", "discovery_pubsub").Logger(),
	}
}

// Subscribe registers a subscription that lives until ctx is cancelled.
// A nil filter receives every event.
func (ps *DiscoveryPubSub) Subscribe(ctx context.Context, filter *DiscoveryEventFilter) *DiscoveryEventChannel {
	subCtx, cancel := context.WithCancel(ctx)
	channel := &DiscoveryEventChannel{
		ID:     uuid.NewString(),
		Filter: filter,
		Events: make(chan *domain.DiscoveryEvent, subscriberBuffer),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[channel.ID] = channel
	ps.mu.Unlock()

	ps.logger.Debug().
		Str("channelId", channel.ID).
		Interface("filter", filter).
		Msg("Discovery subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(channel.ID)
	}()

	return channel
}

// Unsubscribe removes a subscription and closes its channels
func (ps *DiscoveryPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	channel, ok := ps.channels[channelID]
	if ok {
		delete(ps.channels, channelID)
		close(channel.Events)
		close(channel.Done)
	}
	ps.mu.Unlock()

	if !ok {
		return
	}
	channel.cancel()
	ps.logger.Debug().Str("channelId", channelID).Msg("Discovery subscription removed")
}

// Publish delivers an event to every matching subscriber.
// Subscribers with a full buffer miss the event; Publish never blocks.
func (ps *DiscoveryPubSub) Publish(event *domain.DiscoveryEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	delivered := 0
	for _, channel := range ps.channels {
		if !channel.Filter.matches(event) {
			continue
		}
		select {
		case channel.Events <- event:
			delivered++
		default:
			ps.dropped.Add(1)
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Str("type", string(event.Type)).
				Msg("Subscriber buffer full, dropping discovery event")
		}
	}
	ps.published.Add(1)

	ps.logger.Debug().
		Str("type", string(event.Type)).
		Str("runId", event.RunID).
		Int("subscribers", delivered).
		Msg("Published discovery event")
}

// Stats returns a snapshot of subscriber and delivery counts
func (ps *DiscoveryPubSub) Stats() Stats {
	ps.mu.RLock()
	n := len(ps.channels)
	ps.mu.RUnlock()
	return Stats{Subscribers: n, Published: ps.published.Load(), Dropped: ps.dropped.Load()}
}
