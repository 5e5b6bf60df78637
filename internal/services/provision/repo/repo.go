// Package repo provides the provision repository implementation
package repo

import (
	"context"
	"fmt"
	"time"

	"footfall/internal/core/mac"
	"footfall/internal/modkit/repokit"
	perr "footfall/internal/platform/errors"
)

// Repo defines the provision repository contract.
//
// Partition DDL cannot be parameterized, so every identifier here is built
// from an antenna id that has already passed mac.Valid plus numeric
// year/month values. Nothing else is ever spliced into SQL text
type Repo interface {
	ListAntennas(ctx context.Context) ([]string, error)

	CreateBase(ctx context.Context) error
	CreateOverflow(ctx context.Context) error
	CreateAntennaPartition(ctx context.Context, antenna string) error
	CreateYearPartition(ctx context.Context, antenna string, year int, loc *time.Location) error
	CreateMonthPartition(ctx context.Context, antenna string, year, month int, loc *time.Location) error

	GrantReadAll(ctx context.Context, roles []string) error
}

type (
	// PG is a Postgres provision repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres provision repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// ListAntennas returns every active antenna id known to the admin tables
func (r *queries) ListAntennas(ctx context.Context) ([]string, error) {
	const sql = `SELECT antenna_id FROM antenna_info WHERE is_active ORDER BY antenna_id`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "list antennas")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateBase creates the partitioned base table
func (r *queries) CreateBase(ctx context.Context) error {
	const sql = `
		CREATE TABLE IF NOT EXISTS raw_event (
			rt            timestamptz NOT NULL,
			sa            char(12) NOT NULL,
			da            char(12) NOT NULL,
			rssi          smallint NOT NULL,
			seqno         integer NOT NULL,
			vendor        varchar(16) DEFAULT '',
			frame_type    smallint NOT NULL,
			frame_subtype smallint NOT NULL DEFAULT -1,
			ssid          varchar(32) DEFAULT '',
			channel       smallint NOT NULL,
			upload_time   timestamptz,
			delivery_time timestamptz,
			antenna       char(12) NOT NULL
		) PARTITION BY LIST (antenna)
	`
	_, err := r.q.Exec(ctx, sql)
	return perr.FromPostgres(err, "create base table")
}

// CreateOverflow creates the unpartitioned catch-all for partition-miss rows
func (r *queries) CreateOverflow(ctx context.Context) error {
	const sql = `
		CREATE TABLE IF NOT EXISTS raw_event_overflow (
			rt            timestamptz NOT NULL,
			sa            char(12) NOT NULL,
			da            char(12) NOT NULL,
			rssi          smallint NOT NULL,
			seqno         integer NOT NULL,
			vendor        varchar(16) DEFAULT '',
			frame_type    smallint NOT NULL,
			frame_subtype smallint NOT NULL DEFAULT -1,
			ssid          varchar(32) DEFAULT '',
			channel       smallint NOT NULL,
			upload_time   timestamptz,
			delivery_time timestamptz,
			antenna       char(12) NOT NULL
		)
	`
	_, err := r.q.Exec(ctx, sql)
	return perr.FromPostgres(err, "create overflow table")
}

// CreateAntennaPartition creates the antenna's list partition under raw_event
func (r *queries) CreateAntennaPartition(ctx context.Context, antenna string) error {
	if !mac.Valid(antenna) {
		return perr.InvalidArgf("antenna id %q is not a normalized hardware address", antenna)
	}
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS raw_event_%s PARTITION OF raw_event
		FOR VALUES IN ('%s')
		PARTITION BY RANGE (rt)
	`, antenna, antenna)
	_, err := r.q.Exec(ctx, sql)
	return perr.FromPostgresf(err, "create antenna partition %s", antenna)
}

// CreateYearPartition creates the antenna's year range partition
func (r *queries) CreateYearPartition(ctx context.Context, antenna string, year int, loc *time.Location) error {
	if !mac.Valid(antenna) {
		return perr.InvalidArgf("antenna id %q is not a normalized hardware address", antenna)
	}
	from := time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	to := time.Date(year+1, 1, 1, 0, 0, 0, 0, loc)
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS raw_event_%s_%d PARTITION OF raw_event_%s
		FOR VALUES FROM ('%s') TO ('%s')
		PARTITION BY RANGE (rt)
	`, antenna, year, antenna, pgTS(from), pgTS(to))
	_, err := r.q.Exec(ctx, sql)
	return perr.FromPostgresf(err, "create year partition %s_%d", antenna, year)
}

// CreateMonthPartition creates one monthly leaf and its primary key.
// The PK makes duplicate (rt, sa) deliveries a clean no-op at insert time
func (r *queries) CreateMonthPartition(ctx context.Context, antenna string, year, month int, loc *time.Location) error {
	if !mac.Valid(antenna) {
		return perr.InvalidArgf("antenna id %q is not a normalized hardware address", antenna)
	}
	if month < 1 || month > 12 {
		return perr.InvalidArgf("month %d out of range", month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)
	leaf := fmt.Sprintf("raw_event_%s_%d_%02d", antenna, year, month)
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s PARTITION OF raw_event_%s_%d
		FOR VALUES FROM ('%s') TO ('%s')
	`, leaf, antenna, year, pgTS(from), pgTS(to))
	if _, err := r.q.Exec(ctx, sql); err != nil {
		return perr.FromPostgresf(err, "create month partition %s", leaf)
	}
	pk := fmt.Sprintf(`
		ALTER TABLE %s ADD CONSTRAINT %s_pkey PRIMARY KEY (rt, sa)
	`, leaf, leaf)
	if _, err := r.q.Exec(ctx, pk); err != nil {
		// rerun: the leaf already carries its PK
		if perr.IsDuplicateKey(err) || perr.IsSQLState(err, "42P16") || perr.IsSQLState(err, "42710") {
			return nil
		}
		return perr.FromPostgresf(err, "add primary key on %s", leaf)
	}
	return nil
}

// GrantReadAll grants SELECT on all public tables to the reporting roles
func (r *queries) GrantReadAll(ctx context.Context, roles []string) error {
	for _, role := range roles {
		if !validRole(role) {
			return perr.InvalidArgf("role %q is not a plain identifier", role)
		}
		sql := fmt.Sprintf(`GRANT SELECT ON ALL TABLES IN SCHEMA public TO %s`, role)
		if _, err := r.q.Exec(ctx, sql); err != nil {
			return perr.FromPostgresf(err, "grant select to %s", role)
		}
	}
	return nil
}

// pgTS renders a timestamptz literal with its zone offset
func pgTS(t time.Time) string { return t.Format("2006-01-02 15:04:05-07") }

// validRole accepts plain SQL identifiers only: letters, digits, underscore,
// not starting with a digit
func validRole(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
