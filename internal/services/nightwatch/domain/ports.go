package domain

import (
	"context"
	"time"
)

// WatcherPort runs the completeness and health batch
type WatcherPort interface {
	// CheckHealth sweeps every antenna of every currently open site,
	// persists alert records and publishes the severity payload
	CheckHealth(ctx context.Context) error

	// DetectGaps finds delivery gaps inside the open window for one date
	DetectGaps(ctx context.Context, date time.Time) error

	// WeeklyReport publishes the trailing week's significant gaps
	WeeklyReport(ctx context.Context) error
}
