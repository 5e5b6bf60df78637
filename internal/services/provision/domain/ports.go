// Package domain defines the public ports for the provision service
package domain

import "context"

// EnsurerPort provisions raw-event partitions
type EnsurerPort interface {
	// EnsureAntenna creates the base table, the antenna's list partition,
	// the year range partition and its twelve monthly leaves. Every
	// statement is IF NOT EXISTS, so reruns and concurrent runs are safe
	EnsureAntenna(ctx context.Context, antenna string, year int) error

	// EnsureAll sweeps every known antenna. One antenna's DDL failure is
	// logged and skipped; the sweep continues. Returns the number of
	// antennas that provisioned cleanly
	EnsureAll(ctx context.Context, year int) (int, error)
}
