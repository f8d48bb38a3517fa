package domain

import "time"

// HealthStatus is the bucket a health score falls into
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
)

// HealthBucket maps a 0-100 score to its status
func HealthBucket(score float64) HealthStatus {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 70:
		return HealthGood
	case score >= 50:
		return HealthFair
	default:
		return HealthPoor
	}
}

// FieldHealth scores how recently field definitions were verified
type FieldHealth struct {
	Total            int          `json:"total"`
	RecentlyVerified int          `json:"recently_verified"`
	Stale            int          `json:"stale"`
	HealthScore      float64      `json:"health_score"`
	Status           HealthStatus `json:"status"`
}

// ValueListHealth scores how many value lists are synced
type ValueListHealth struct {
	Total       int          `json:"total"`
	Synced      int          `json:"synced"`
	Failed      int          `json:"failed"`
	Pending     int          `json:"pending"`
	HealthScore float64      `json:"health_score"`
	Status      HealthStatus `json:"status"`
}

// OverallHealth is the averaged score
type OverallHealth struct {
	Score  float64      `json:"score"`
	Status HealthStatus `json:"status"`
}

// ChannelHealth is the score of one channel
type ChannelHealth struct {
	Channel         ChannelKey      `json:"channel"`
	FieldHealth     FieldHealth     `json:"field_health"`
	ValueListHealth ValueListHealth `json:"value_list_health"`
	Overall         OverallHealth   `json:"overall"`
}

// HealthReport is the full health overview
type HealthReport struct {
	FieldHealth     FieldHealth     `json:"field_health"`
	ValueListHealth ValueListHealth `json:"value_list_health"`
	Overall         OverallHealth   `json:"overall"`
	Channels        []ChannelHealth `json:"channels"`
	Recommendations []string        `json:"recommendations"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
