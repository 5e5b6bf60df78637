package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"footfall/internal/platform/logger"
	"footfall/internal/services/nightwatch/domain"
)

// DetectGaps finds delivery gaps inside each site's open window on the
// given date and appends them as missing_record rows
func (s *Svc) DetectGaps(ctx context.Context, date time.Time) error {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := s.deps.Log.With().Str("run_id", runID).Logger()

	sites, err := s.Repo.WatchSites(ctx)
	if err != nil {
		return err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.TZ)
	found := 0
	for _, site := range sites {
		open, closeH, closeM := site.Hours.For(day)
		from := day.Add(time.Duration(open) * time.Hour)
		to := day.Add(time.Duration(closeH)*time.Hour + time.Duration(closeM)*time.Minute)
		if !to.After(from) {
			continue
		}
		slog := log.With().Int64("site_id", site.ID).Logger()
		for _, antenna := range site.Antennas {
			n, err := s.gapsFor(ctx, site, antenna, from, to)
			if err != nil {
				slog.Warn().Str("antenna", antenna).Err(err).
					Msg("gap detection failed, skipping antenna")
				continue
			}
			found += n
		}
	}
	log.Info().Int("gaps", found).Str("date", day.Format("2006-01-02")).
		Msg("gap detection finished")
	return nil
}

// gapsFor walks the antenna's distinct delivery minutes with open and close
// sentinels; every silence longer than the tolerance becomes one row
func (s *Svc) gapsFor(
	ctx context.Context, site domain.Site, antenna string, from, to time.Time,
) (int, error) {
	minutes, err := s.Repo.DistinctMinutes(ctx, antenna, from, to)
	if err != nil {
		return 0, err
	}

	points := make([]time.Time, 0, len(minutes)+1)
	points = append(points, minutes...)
	points = append(points, to)

	found := 0
	prev := from
	for _, p := range points {
		if p.Sub(prev) > s.cfg.GapTolerance {
			g := domain.Gap{
				SiteID:   site.ID,
				SiteName: site.Name,
				Antenna:  antenna,
				Start:    prev,
				End:      p,
			}
			l1, l2, err := s.Repo.CountAlerts(ctx, antenna, prev, p)
			if err != nil {
				s.deps.Log.Warn().Str("antenna", antenna).Err(err).
					Msg("alert count failed, recording gap without counts")
			} else {
				g.L1Alerts, g.L2Alerts = l1, l2
			}
			if err := s.Repo.InsertGap(ctx, g); err != nil {
				return found, err
			}
			found++
		}
		prev = p
	}
	return found, nil
}

// WeeklyReport publishes the trailing week's significant gaps for the
// external notifier
func (s *Svc) WeeklyReport(ctx context.Context) error {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := s.deps.Log.With().Str("run_id", runID).Logger()
	now := s.cfg.Now().In(s.cfg.TZ)
	from := now.AddDate(0, 0, -7)

	gaps, err := s.Repo.WeeklyGaps(ctx, from, now, s.cfg.RollupMinGap)
	if err != nil {
		return err
	}

	type reportGap struct {
		SiteID   int64     `json:"site_id"`
		SiteName string    `json:"site_name"`
		Antenna  string    `json:"antenna"`
		Start    time.Time `json:"start"`
		End      time.Time `json:"end"`
		Minutes  int       `json:"minutes"`
		L1Alerts int       `json:"l1_alerts"`
		L2Alerts int       `json:"l2_alerts"`
	}
	out := make([]reportGap, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, reportGap{
			SiteID:   g.SiteID,
			SiteName: g.SiteName,
			Antenna:  g.Antenna,
			Start:    g.Start,
			End:      g.End,
			Minutes:  int(g.Interval().Minutes()),
			L1Alerts: g.L1Alerts,
			L2Alerts: g.L2Alerts,
		})
	}

	log.Info().Int("gaps", len(out)).Msg("weekly rollup finished")
	if s.deps.Bus == nil {
		return nil
	}
	body, err := json.Marshal(map[string]any{
		"run_id": runID,
		"from":   from,
		"to":     now,
		"gaps":   out,
	})
	if err != nil {
		return err
	}
	if err := s.deps.Bus.Publish(s.cfg.ReportSubject, body); err != nil {
		log.Warn().Err(err).Msg("weekly report publish failed")
	}
	return nil
}
