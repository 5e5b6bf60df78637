// Package repo provides the ingest repository implementation
package repo

import (
	"context"
	"fmt"

	"footfall/internal/core/mac"
	"footfall/internal/modkit/repokit"
	perr "footfall/internal/platform/errors"
	"footfall/internal/services/ingest/domain"
)

// Repo defines the ingest repository contract
type Repo interface {
	// InsertEvent writes one row into the antenna's partition subtree.
	// The raw Postgres error surfaces so the handler can branch on
	// duplicate, partition-miss and transient classes
	InsertEvent(ctx context.Context, ev domain.RawEvent) error

	// InsertOverflow writes a partition-miss row into the catch-all table
	InsertOverflow(ctx context.Context, ev domain.RawEvent) error
}

type (
	// PG is a Postgres ingest repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres ingest repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const eventColumns = `
	(rt, sa, da, rssi, seqno, vendor, frame_type, frame_subtype,
	 ssid, channel, upload_time, delivery_time, antenna)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// InsertEvent targets the antenna's subtree directly, like the partition
// naming contract promises: a missing antenna surfaces as undefined_table,
// a missing month as the router's check violation
func (r *queries) InsertEvent(ctx context.Context, ev domain.RawEvent) error {
	if !mac.Valid(ev.Antenna) {
		return perr.InvalidArgf("antenna id %q is not a normalized hardware address", ev.Antenna)
	}
	sql := fmt.Sprintf(`INSERT INTO raw_event_%s %s`, ev.Antenna, eventColumns)
	_, err := r.q.Exec(ctx, sql,
		ev.RT, ev.SA, ev.DA, ev.RSSI, ev.SeqNo, ev.Vendor, ev.FrameType, ev.FrameSubtype,
		ev.SSID, ev.Channel, ev.UploadTime, ev.DeliveryTime, ev.Antenna,
	)
	return err
}

// InsertOverflow preserves the full row, antenna tag included, so a later
// re-provision plus redelivery loses nothing
func (r *queries) InsertOverflow(ctx context.Context, ev domain.RawEvent) error {
	sql := `INSERT INTO raw_event_overflow ` + eventColumns
	_, err := r.q.Exec(ctx, sql,
		ev.RT, ev.SA, ev.DA, ev.RSSI, ev.SeqNo, ev.Vendor, ev.FrameType, ev.FrameSubtype,
		ev.SSID, ev.Channel, ev.UploadTime, ev.DeliveryTime, ev.Antenna,
	)
	return perr.FromPostgres(err, "insert overflow row")
}
