// Package service implements the count estimation batch
package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"footfall/internal/core/calibrate"
	"footfall/internal/core/decoy"
	"footfall/internal/core/oui"
	"footfall/internal/modkit"
	"footfall/internal/modkit/repokit"
	"footfall/internal/platform/logger"
	"footfall/internal/services/tally/domain"
	"footfall/internal/services/tally/repo"
)

// Config carries runtime knobs for the estimator
type Config struct {
	// Decoy tunes the rotating-address exclusion heuristic
	Decoy decoy.Params
	// CorrWindow is the half-width of the multi-antenna correlation join
	CorrWindow time.Duration
	// TZ is the deployment timezone all day boundaries are computed in
	TZ *time.Location
	// Now is the clock, swappable in tests
	Now func() time.Time
}

// Svc implements domain.TallierPort
type Svc struct {
	Repo repo.Repo
	deps modkit.Deps
	cfg  Config
}

// New constructs a tally service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("tally.Service requires a non nil TxRunner")
	}
	if cfg.Decoy.Lag <= 0 || cfg.Decoy.Span <= 0 {
		cfg.Decoy = decoy.Defaults()
	}
	if cfg.CorrWindow <= 0 {
		cfg.CorrWindow = time.Minute
	}
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	// Hour bucketing happens in SQL via date_part, which reads the session
	// TimeZone. Pin it per transaction so counts land in the deployment
	// timezone's hours regardless of the server default
	bound := repokit.WithBeginHooks(deps.PG, repo.SessionTimeZone(cfg.TZ))
	return &Svc{
		Repo: repo.NewPG().Bind(bound),
		deps: deps,
		cfg:  cfg,
	}
}

// RunDay sweeps the active sites for one date. Per-site failures are logged
// and skipped; only reference data unavailability aborts the run
func (s *Svc) RunDay(ctx context.Context, date time.Time, siteID int64) error {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := s.deps.Log.With().Str("run_id", runID).Logger()

	sites, err := s.Repo.ActiveSites(ctx)
	if err != nil {
		return err
	}

	done := 0
	matched := 0
	for _, site := range sites {
		if siteID != 0 && site.ID != siteID {
			continue
		}
		matched++
		if err := ctx.Err(); err != nil {
			return err
		}
		slog := log.With().Int64("site_id", site.ID).Logger()
		if len(site.Antennas) == 0 {
			slog.Warn().Msg("site has no active antennas, skipping")
			continue
		}
		if !site.Profile.Complete() {
			slog.Warn().Int("version", site.Profile.Version).
				Msg("calibration profile incomplete, skipping")
			continue
		}
		if err := s.tallySite(ctx, &slog, site, date); err != nil {
			slog.Warn().Err(err).Msg("site estimation failed, continuing sweep")
			continue
		}
		done++
	}

	if siteID != 0 && matched == 0 {
		log.Warn().Int64("site_id", siteID).Msg("site filter matched no active site")
	}
	log.Info().Int("sites", done).Str("date", date.Format("2006-01-02")).
		Msg("tally run finished")
	return nil
}

// tallySite estimates one site's hourly counts and upserts them
func (s *Svc) tallySite(ctx context.Context, log *logger.Logger, site domain.Site, date time.Time) error {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.TZ)
	to := from.AddDate(0, 0, 1)

	var all []decoy.Sighting
	for _, a := range site.Antennas {
		rows, err := s.Repo.Detections(ctx, a.ID, from, to, a.MinRSSI)
		if err != nil {
			return err
		}
		all = append(all, rows...)
	}
	if len(all) == 0 {
		log.Debug().Msg("no detections in window")
		return nil
	}

	kept := decoy.Filter(all, len(site.Antennas), s.cfg.Decoy)
	stable := s.stableHourly(kept)

	var random map[int]int
	if len(site.Antennas) >= 2 {
		var err error
		random, err = s.Repo.CorrelatedHourly(ctx,
			site.Antennas[0], site.Antennas[1], from, to, s.cfg.CorrWindow)
		if err != nil {
			return err
		}
	} else {
		random = s.randomHourly(kept)
	}

	now := s.cfg.Now().In(s.cfg.TZ)
	open, closeH, closeM := site.Hours.For(from)
	sameDay := sameLocalDay(from, now) && closeH >= now.Hour()
	win := calibrate.ClampHours(open, closeH, closeM, now, sameDay)

	var out []domain.HourCount
	for h := win.OpenHour; h <= win.LastHour; h++ {
		out = append(out, domain.HourCount{
			SiteID: site.ID,
			TsHour: from.Add(time.Duration(h) * time.Hour),
			Count:  site.Profile.Estimate(stable[h], random[h]),
		})
	}
	if len(out) == 0 {
		log.Debug().Msg("empty output window")
		return nil
	}
	if err := s.Repo.UpsertHourly(ctx, out); err != nil {
		return err
	}
	log.Info().Int("hours", len(out)).Msg("hourly counts upserted")
	return nil
}

// stableHourly counts distinct stable-vendor devices per hour. The stable
// population is classified by vendor alone; every frame type a stable address
// shows up in counts it as present. First sighting wins across antennas so a
// device moving through the store is credited to the hour it arrived
func (s *Svc) stableHourly(rows []decoy.Sighting) map[int]int {
	sorted := make([]decoy.Sighting, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RT.Before(sorted[j].RT) })

	seen := map[string]struct{}{}
	out := map[int]int{}
	for _, r := range sorted {
		if !oui.Stable(r.Vendor) {
			continue
		}
		if _, dup := seen[r.SA]; dup {
			continue
		}
		seen[r.SA] = struct{}{}
		out[r.RT.In(s.cfg.TZ).Hour()]++
	}
	return out
}

// randomHourly buckets randomized probe sightings per hour for single-antenna
// sites. Randomized addresses rotate, so the bucket is a raw activity signal
// for the calibration model, not a device count; no deduplication
func (s *Svc) randomHourly(rows []decoy.Sighting) map[int]int {
	out := map[int]int{}
	for _, r := range rows {
		if !oui.Randomized(r.Vendor, r.FrameType) {
			continue
		}
		out[r.RT.In(s.cfg.TZ).Hour()]++
	}
	return out
}

func sameLocalDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
