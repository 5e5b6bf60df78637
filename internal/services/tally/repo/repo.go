// Package repo provides the tally repository implementation
package repo

import (
	"context"
	"time"

	"footfall/internal/core/decoy"
	"footfall/internal/core/mac"
	"footfall/internal/core/oui"
	"footfall/internal/modkit/repokit"
	perr "footfall/internal/platform/errors"
	"footfall/internal/services/tally/domain"
)

// Repo defines the tally repository contract
type Repo interface {
	// ActiveSites loads every active site joined with its active antennas
	// and per-antenna RSSI floors
	ActiveSites(ctx context.Context) ([]domain.Site, error)

	// Detections pulls one antenna's sightings for the window, ordered by rt
	Detections(ctx context.Context, antenna string, from, to time.Time, minRSSI int16) ([]decoy.Sighting, error)

	// CorrelatedHourly buckets the randomized activity signal per hour by
	// joining two antennas' sightings on address within the given time window
	CorrelatedHourly(ctx context.Context, a, b domain.Antenna, from, to time.Time, window time.Duration) (map[int]int, error)

	// UpsertHourly writes the output rows; a rerun replaces earlier counts
	UpsertHourly(ctx context.Context, rows []domain.HourCount) error
}

type (
	// PG is a Postgres tally repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres tally repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// SessionTimeZone pins the transaction's TimeZone so date_part('hour', rt)
// buckets rows in the deployment timezone rather than the server default
func SessionTimeZone(tz *time.Location) repokit.BeginHook {
	return func(ctx context.Context, q repokit.Queryer) error {
		_, err := q.Exec(ctx, `SELECT set_config('TimeZone', $1, true)`, tz.String())
		return err
	}
}

// ActiveSites aggregates antenna_info per site so one row carries the whole
// antenna set. Sites with no active antennas drop out of the join and are
// reported by the service as skipped
func (r *queries) ActiveSites(ctx context.Context) ([]domain.Site, error) {
	const sql = `
		SELECT s.site_id, s.site_name,
		       s.weekday_open_hour, s.weekday_close_hour, s.weekday_close_min,
		       s.weekend_open_hour, s.weekend_close_hour, s.weekend_close_min,
		       s.alg_version, s.android_rate, s.wifi_rate,
		       COALESCE(s.model_slope, 0), COALESCE(s.manual_slope, 0),
		       COALESCE(s.model_intercept, 0), COALESCE(s.model_upper_limit, 0),
		       a.ids, a.floors
		FROM site_info s
		JOIN (
			SELECT site_id,
			       array_agg(antenna_id ORDER BY antenna_id) AS ids,
			       array_agg(min_rssi ORDER BY antenna_id) AS floors
			FROM antenna_info
			WHERE is_active
			GROUP BY site_id
		) a USING (site_id)
		WHERE s.is_active
		ORDER BY s.site_id
	`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "load active sites")
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		var (
			s      domain.Site
			ids    []string
			floors []int16
		)
		if err := rows.Scan(
			&s.ID, &s.Name,
			&s.Hours.WeekdayOpen, &s.Hours.WeekdayClose, &s.Hours.WeekdayCloseMin,
			&s.Hours.WeekendOpen, &s.Hours.WeekendClose, &s.Hours.WeekendCloseMin,
			&s.Profile.Version, &s.Profile.AndroidRate, &s.Profile.WifiRate,
			&s.Profile.ModelSlope, &s.Profile.ManualSlope,
			&s.Profile.ModelIntercept, &s.Profile.ModelUpper,
			&ids, &floors,
		); err != nil {
			return nil, err
		}
		for i, id := range ids {
			var floor int16
			if i < len(floors) {
				floor = floors[i]
			}
			s.Antennas = append(s.Antennas, domain.Antenna{ID: id, MinRSSI: floor})
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Detections queries the base table; the antenna predicate on the list
// partition key lets the planner prune to that antenna's subtree
func (r *queries) Detections(
	ctx context.Context, antenna string, from, to time.Time, minRSSI int16,
) ([]decoy.Sighting, error) {
	if !mac.Valid(antenna) {
		return nil, perr.InvalidArgf("antenna id %q is not a normalized hardware address", antenna)
	}
	const sql = `
		SELECT rt, sa, vendor, frame_type
		FROM raw_event
		WHERE antenna = $1 AND rt >= $2 AND rt < $3 AND rssi >= $4
		ORDER BY rt
	`
	rows, err := r.q.Query(ctx, sql, antenna, from, to, minRSSI)
	if err != nil {
		return nil, perr.FromPostgresf(err, "load detections for %s", antenna)
	}
	defer rows.Close()

	var out []decoy.Sighting
	for rows.Next() {
		var s decoy.Sighting
		if err := rows.Scan(&s.RT, &s.SA, &s.Vendor, &s.FrameType); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CorrelatedHourly joins the two antennas' randomized probe populations on
// address within the window. The full join keeps sightings only one antenna
// heard; every joined row counts, because the hourly value is a raw activity
// signal for the calibration model, not a device count. The hour bucket comes
// from date_part, so the query runs inside a transaction when the binder
// carries one, letting a session TimeZone hook take effect
func (r *queries) CorrelatedHourly(
	ctx context.Context, a, b domain.Antenna, from, to time.Time, window time.Duration,
) (map[int]int, error) {
	if !mac.Valid(a.ID) || !mac.Valid(b.ID) {
		return nil, perr.InvalidArgf("antenna pair %q, %q is not normalized", a.ID, b.ID)
	}
	if tx, ok := r.q.(repokit.TxRunner); ok {
		var out map[int]int
		err := tx.Tx(ctx, func(q repokit.Queryer) error {
			var err error
			out, err = correlatedHourly(ctx, q, a, b, from, to, window)
			return err
		})
		return out, err
	}
	return correlatedHourly(ctx, r.q, a, b, from, to, window)
}

func correlatedHourly(
	ctx context.Context, q repokit.Queryer,
	a, b domain.Antenna, from, to time.Time, window time.Duration,
) (map[int]int, error) {
	const sql = `
		SELECT date_part('hour', COALESCE(x.rt, y.rt))::int AS hr,
		       count(1) AS n
		FROM (
			SELECT rt, sa FROM raw_event
			WHERE antenna = $1 AND rt >= $3 AND rt < $4
			  AND rssi BETWEEN $5 AND 0
			  AND frame_type = 0 AND (vendor = '' OR vendor = $7)
		) x
		FULL JOIN (
			SELECT rt, sa FROM raw_event
			WHERE antenna = $2 AND rt >= $3 AND rt < $4
			  AND rssi BETWEEN $6 AND 0
			  AND frame_type = 0 AND (vendor = '' OR vendor = $7)
		) y
		ON x.sa = y.sa
		   AND x.rt - y.rt BETWEEN -make_interval(secs => $8) AND make_interval(secs => $8)
		GROUP BY 1
	`
	rows, err := q.Query(ctx, sql,
		a.ID, b.ID, from, to, a.MinRSSI, b.MinRSSI, oui.RandomizedSentinel, window.Seconds())
	if err != nil {
		return nil, perr.FromPostgresf(err, "correlate %s with %s", a.ID, b.ID)
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var hr, n int
		if err := rows.Scan(&hr, &n); err != nil {
			return nil, err
		}
		out[hr] = n
	}
	return out, rows.Err()
}

// UpsertHourly replaces any earlier run's counts for the same hours
func (r *queries) UpsertHourly(ctx context.Context, rows []domain.HourCount) error {
	const sql = `
		INSERT INTO hourly_customer_count (site_id, ts_hour, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (site_id, ts_hour) DO UPDATE SET count = excluded.count
	`
	for _, row := range rows {
		if _, err := r.q.Exec(ctx, sql, row.SiteID, row.TsHour, row.Count); err != nil {
			return perr.FromPostgresf(err, "upsert hourly count site=%d hour=%s",
				row.SiteID, row.TsHour.Format(time.RFC3339))
		}
	}
	return nil
}
