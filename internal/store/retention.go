package store

import "time"

// Retention windows: 24h for metrics, liquidations,
// oi/funding and large moves; 90d for trades, outliers and outlier spans.
const (
	RetentionShort = 24 * time.Hour
	RetentionLong  = 90 * 24 * time.Hour
)
