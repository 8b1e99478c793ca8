package model

import "time"

// Classification is the ephemeral output of the keyword classifier.
// Confidence is a raw keyword hit count.
type Classification struct {
	Category   Category `json:"category"`
	Confidence int      `json:"confidence"`
}

// RunResult is returned by one pass of the inbox automation.
type RunResult struct {
	ProcessedCount       int        `json:"processed_count"`
	SentCount            int        `json:"sent_count"`
	NewLastPollTimestamp *time.Time `json:"new_last_poll_timestamp"`
	Error                string     `json:"error,omitempty"`
}

type CategoryStat struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Sent     int      `json:"sent"`
}

type AnalyticsSummary struct {
	TotalProcessed    int            `json:"total_processed"`
	ResponsesSent     int            `json:"responses_sent"`
	ResponseRate      float64        `json:"response_rate"`
	AverageConfidence float64        `json:"average_confidence"`
	ByCategory        []CategoryStat `json:"by_category"`
	LastProcessedAt   *time.Time     `json:"last_processed_at,omitempty"`
}
