package ports

import "archie-core-marketplace-layer/internal/domain"

// DiscoveryPublisher fans discovery completion events out to in-process subscribers.
// Publish never blocks the discovery run.
type DiscoveryPublisher interface {
	Publish(event *domain.DiscoveryEvent)
}
