// Package repo provides the nightwatch repository implementation
package repo

import (
	"context"
	"fmt"
	"time"

	"footfall/internal/core/mac"
	"footfall/internal/modkit/repokit"
	perr "footfall/internal/platform/errors"
	"footfall/internal/services/nightwatch/domain"
)

// Repo defines the nightwatch repository contract
type Repo interface {
	// WatchSites loads every active site with its active antennas
	WatchSites(ctx context.Context) ([]domain.Site, error)

	// LastRecord returns the newest row by delivery_time in one monthly
	// leaf. found is false when the leaf is empty or absent
	LastRecord(ctx context.Context, antenna string, year, month int) (domain.Record, bool, error)

	// LastCorrectRecord is LastRecord restricted to rows whose timestamps
	// satisfy rt <= upload_time <= delivery_time
	LastCorrectRecord(ctx context.Context, antenna string, year, month int) (domain.Record, bool, error)

	// InsertAlert appends one alert record
	InsertAlert(ctx context.Context, a domain.AlertRecord) error

	// DistinctMinutes returns the distinct per-minute delivery timestamps
	// for one antenna inside the window, ascending
	DistinctMinutes(ctx context.Context, antenna string, from, to time.Time) ([]time.Time, error)

	// CountAlerts counts alerts per severity for one antenna inside the window
	CountAlerts(ctx context.Context, antenna string, from, to time.Time) (l1, l2 int, err error)

	// InsertGap appends one missing_record row
	InsertGap(ctx context.Context, g domain.Gap) error

	// WeeklyGaps selects gaps at least minGap long whose start falls inside
	// the window, skipping ignored sites and duplicate intervals
	WeeklyGaps(ctx context.Context, from, to time.Time, minGap time.Duration) ([]domain.Gap, error)
}

type (
	// PG is a Postgres nightwatch repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres nightwatch repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// WatchSites aggregates antenna_info per site, ignored sites included so the
// health sweep can still watch them while reports drop them
func (r *queries) WatchSites(ctx context.Context) ([]domain.Site, error) {
	const sql = `
		SELECT s.site_id, s.site_name, s.is_ignored,
		       s.weekday_open_hour, s.weekday_close_hour, s.weekday_close_min,
		       s.weekend_open_hour, s.weekend_close_hour, s.weekend_close_min,
		       a.ids
		FROM site_info s
		JOIN (
			SELECT site_id, array_agg(antenna_id ORDER BY antenna_id) AS ids
			FROM antenna_info
			WHERE is_active
			GROUP BY site_id
		) a USING (site_id)
		WHERE s.is_active
		ORDER BY s.site_id
	`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "load watch sites")
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		var s domain.Site
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Ignored,
			&s.Hours.WeekdayOpen, &s.Hours.WeekdayClose, &s.Hours.WeekdayCloseMin,
			&s.Hours.WeekendOpen, &s.Hours.WeekendClose, &s.Hours.WeekendCloseMin,
			&s.Antennas,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LastRecord probes one monthly leaf directly: an absent leaf means the
// month was never provisioned, which the probe treats as not found
func (r *queries) LastRecord(
	ctx context.Context, antenna string, year, month int,
) (domain.Record, bool, error) {
	return r.lastIn(ctx, antenna, year, month, "")
}

// LastCorrectRecord restricts the probe to rows the antenna stamped in the
// right order, which is how a drifting clock is told apart from silence
func (r *queries) LastCorrectRecord(
	ctx context.Context, antenna string, year, month int,
) (domain.Record, bool, error) {
	return r.lastIn(ctx, antenna, year, month,
		"WHERE rt <= upload_time AND upload_time <= delivery_time")
}

func (r *queries) lastIn(
	ctx context.Context, antenna string, year, month int, where string,
) (domain.Record, bool, error) {
	var rec domain.Record
	if !mac.Valid(antenna) {
		return rec, false, perr.InvalidArgf("antenna id %q is not a normalized hardware address", antenna)
	}
	if month < 1 || month > 12 {
		return rec, false, perr.InvalidArgf("month %d out of range", month)
	}
	sql := fmt.Sprintf(`
		SELECT rt, upload_time, delivery_time
		FROM raw_event_%s_%d_%02d
		%s
		ORDER BY delivery_time DESC
		LIMIT 1
	`, antenna, year, month, where)
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		if perr.IsUndefinedTable(err) {
			return rec, false, nil
		}
		return rec, false, perr.FromPostgresf(err, "probe %s %d-%02d", antenna, year, month)
	}
	defer rows.Close()

	if !rows.Next() {
		return rec, false, rows.Err()
	}
	if err := rows.Scan(&rec.RT, &rec.UploadTime, &rec.DeliveryTime); err != nil {
		return rec, false, err
	}
	return rec, true, rows.Err()
}

// InsertAlert appends one alert row
func (r *queries) InsertAlert(ctx context.Context, a domain.AlertRecord) error {
	const sql = `
		INSERT INTO alert_record (severity, antenna, reported_at, site_ctx, run_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.Exec(ctx, sql, string(a.Severity), a.Antenna, a.ReportedAt, a.SiteCtx, a.RunID)
	return perr.FromPostgresf(err, "insert %s alert for %s", a.Severity, a.Antenna)
}

// DistinctMinutes collapses deliveries to minute granularity so gap math
// works on a bounded set regardless of probe volume
func (r *queries) DistinctMinutes(
	ctx context.Context, antenna string, from, to time.Time,
) ([]time.Time, error) {
	if !mac.Valid(antenna) {
		return nil, perr.InvalidArgf("antenna id %q is not a normalized hardware address", antenna)
	}
	sql := fmt.Sprintf(`
		SELECT DISTINCT date_trunc('minute', rt) AS m
		FROM raw_event_%s
		WHERE rt >= $1 AND rt < $2
		ORDER BY m
	`, antenna)
	rows, err := r.q.Query(ctx, sql, from, to)
	if err != nil {
		if perr.IsUndefinedTable(err) {
			return nil, nil
		}
		return nil, perr.FromPostgresf(err, "distinct minutes for %s", antenna)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountAlerts tallies the alerts raised against an antenna inside the window
func (r *queries) CountAlerts(
	ctx context.Context, antenna string, from, to time.Time,
) (int, int, error) {
	const sql = `
		SELECT count(*) FILTER (WHERE severity = 'L1'),
		       count(*) FILTER (WHERE severity = 'L2')
		FROM alert_record
		WHERE antenna = $1 AND reported_at >= $2 AND reported_at < $3
	`
	var l1, l2 int
	rows, err := r.q.Query(ctx, sql, antenna, from, to)
	if err != nil {
		return 0, 0, perr.FromPostgresf(err, "count alerts for %s", antenna)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&l1, &l2); err != nil {
			return 0, 0, err
		}
	}
	return l1, l2, rows.Err()
}

// InsertGap appends one missing_record row with its half-open interval
func (r *queries) InsertGap(ctx context.Context, g domain.Gap) error {
	const sql = `
		INSERT INTO missing_record
			(site_id, site_name, antenna, gap_interval, during, l1_alerts, l2_alerts)
		VALUES ($1, $2, $3, $4, tstzrange($5, $6, '[)'), $7, $8)
	`
	_, err := r.q.Exec(ctx, sql,
		g.SiteID, g.SiteName, g.Antenna, g.Interval(), g.Start, g.End, g.L1Alerts, g.L2Alerts)
	return perr.FromPostgresf(err, "insert gap for %s", g.Antenna)
}

// WeeklyGaps selects the report rows. DISTINCT ON drops re-detected
// intervals; the site join drops ignored sites
func (r *queries) WeeklyGaps(
	ctx context.Context, from, to time.Time, minGap time.Duration,
) ([]domain.Gap, error) {
	const sql = `
		SELECT DISTINCT ON (m.site_id, m.antenna, lower(m.during))
		       m.site_id, m.site_name, m.antenna,
		       lower(m.during), upper(m.during), m.l1_alerts, m.l2_alerts
		FROM missing_record m
		JOIN site_info s USING (site_id)
		WHERE NOT s.is_ignored
		  AND lower(m.during) >= $1 AND lower(m.during) < $2
		  AND m.gap_interval >= $3
		ORDER BY m.site_id, m.antenna, lower(m.during)
	`
	rows, err := r.q.Query(ctx, sql, from, to, minGap)
	if err != nil {
		return nil, perr.FromPostgres(err, "load weekly gaps")
	}
	defer rows.Close()

	var out []domain.Gap
	for rows.Next() {
		var g domain.Gap
		if err := rows.Scan(&g.SiteID, &g.SiteName, &g.Antenna,
			&g.Start, &g.End, &g.L1Alerts, &g.L2Alerts); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
