package pubsub

import (
	"context"
	"testing"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/rs/zerolog"
)

func receive(t *testing.T, ch *DiscoveryEventChannel) *domain.DiscoveryEvent {
	t.Helper()
	select {
	case ev := <-ch.Events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestPublishFiltersByTypeAndMarketplace(t *testing.T) {
	ps := NewDiscoveryPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := ps.Subscribe(ctx, &DiscoveryEventFilter{Types: []domain.DiscoveryEventType{domain.DiscoveryEventBatch}})
	ebay := ps.Subscribe(ctx, &DiscoveryEventFilter{Marketplace: domain.MarketplaceEbay})
	all := ps.Subscribe(ctx, nil)

	ps.Publish(&domain.DiscoveryEvent{Type: domain.DiscoveryEventAccount, Marketplace: domain.MarketplaceShopify, AccountID: "s"})
	ps.Publish(&domain.DiscoveryEvent{Type: domain.DiscoveryEventAccount, Marketplace: domain.MarketplaceEbay, AccountID: "e"})
	ps.Publish(&domain.DiscoveryEvent{Type: domain.DiscoveryEventBatch, RunID: "r1"})

	if ev := receive(t, batches); ev.RunID != "r1" {
		t.Errorf("batch subscriber got %+v", ev)
	}
	if ev := receive(t, ebay); ev.AccountID != "e" {
		t.Errorf("ebay subscriber got %+v", ev)
	}
	if ev := receive(t, ebay); ev.Type != domain.DiscoveryEventBatch {
		t.Errorf("batch events must reach marketplace subscribers, got %+v", ev)
	}
	for i := 0; i < 3; i++ {
		receive(t, all)
	}

	select {
	case ev := <-batches.Events:
		t.Errorf("unexpected extra event %+v", ev)
	default:
	}
}

func TestUnsubscribeOnCancel(t *testing.T) {
	ps := NewDiscoveryPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	ch := ps.Subscribe(ctx, nil)

	if n := ps.Stats().Subscribers; n != 1 {
		t.Fatalf("subscriptions = %v", n)
	}
	cancel()

	select {
	case <-ch.Done:
	case <-time.After(time.Second):
		t.Fatal("subscription not removed after cancel")
	}
	if n := ps.Stats().Subscribers; n != 0 {
		t.Errorf("subscriptions = %v", n)
	}
	ps.Publish(&domain.DiscoveryEvent{Type: domain.DiscoveryEventBatch})
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	ps := NewDiscoveryPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ps.Subscribe(ctx, nil)

	for i := 0; i < subscriberBuffer+2; i++ {
		ps.Publish(&domain.DiscoveryEvent{Type: domain.DiscoveryEventBatch})
	}

	stats := ps.Stats()
	if stats.Published != int64(subscriberBuffer+2) || stats.Dropped != 2 {
		t.Errorf("stats = %+v", stats)
	}
}
