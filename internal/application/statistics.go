package application

import (
	"time"

	"archie-core-marketplace-layer/internal/domain"
)

// FieldStatistics summarizes stored field definitions, counting as recent those verified within RecentlyVerifiedWindow of now
func FieldStatistics(fields []domain.FieldDefinition, now time.Time) domain.FieldStats {
	stats := domain.FieldStats{Total: len(fields), ByChannel: map[string]int{}}
	for _, f := range fields {
		stats.ByChannel[f.Channel.String()]++
		if f.Active {
			stats.Active++
		}
		if f.Required {
			stats.Required++
		} else {
			stats.Optional++
		}
		if isRecentlyVerified(f, now) {
			stats.RecentlyVerified++
		}
		if !f.LastVerifiedAt.IsZero() && (stats.LastVerifiedAt == nil || f.LastVerifiedAt.After(*stats.LastVerifiedAt)) {
			t := f.LastVerifiedAt
			stats.LastVerifiedAt = &t
		}
	}
	return stats
}

// ValueListStatistics summarizes stored value lists by sync status
func ValueListStatistics(lists []domain.ValueList) domain.ValueListStats {
	stats := domain.ValueListStats{Total: len(lists)}
	for _, vl := range lists {
		switch vl.SyncStatus {
		case domain.SyncStatusSynced:
			stats.Synced++
		case domain.SyncStatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
		stats.TotalValues += vl.ValueCount
		if !vl.LastSyncedAt.IsZero() && (stats.LastSyncedAt == nil || vl.LastSyncedAt.After(*stats.LastSyncedAt)) {
			t := vl.LastSyncedAt
			stats.LastSyncedAt = &t
		}
	}
	return stats
}
