package domain

import (
	"context"
	"time"
)

// TallierPort runs the count estimation batch
type TallierPort interface {
	// RunDay estimates hourly counts for every active site on the given
	// date. A non-zero siteID restricts the run to that site
	RunDay(ctx context.Context, date time.Time, siteID int64) error
}
