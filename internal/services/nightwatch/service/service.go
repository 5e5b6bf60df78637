// Package service implements the completeness and health batch
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"footfall/internal/modkit"
	"footfall/internal/platform/logger"
	pstrings "footfall/internal/platform/strings"
	"footfall/internal/services/nightwatch/domain"
	"footfall/internal/services/nightwatch/repo"
)

// ConnMonitor reports which antennas hold a live bus connection
type ConnMonitor interface {
	Connected(ctx context.Context) (map[string]bool, error)
}

// TunnelStatuser reports per-antenna tunnel state
type TunnelStatuser interface {
	Status(ctx context.Context) (map[string]TunnelState, error)
}

// DeviceInspector runs on-device diagnostics for the given antenna ports
type DeviceInspector interface {
	InspectAll(ctx context.Context, ports map[string]int) map[string]domain.Diagnostics
}

// Config carries runtime knobs for the watcher
type Config struct {
	Thresholds Thresholds
	// GraceBuffer delays alerting after a site opens so antennas get time
	// to boot with the store
	GraceBuffer time.Duration
	// Offsets are the day offsets the staleness probe walks, newest first
	Offsets []int

	// GapTolerance is the largest tolerated delivery silence in gap mode
	GapTolerance time.Duration
	// RollupMinGap is the smallest gap the weekly report carries
	RollupMinGap time.Duration

	// AlertSubject and ReportSubject are where payloads for the external
	// notifier are published
	AlertSubject  string
	ReportSubject string

	BusMonURL  string
	TunnelURL  string
	TunnelUser string
	TunnelPass string
	Diag       DiagConfig

	TZ  *time.Location
	Now func() time.Time
}

// Svc implements domain.WatcherPort
type Svc struct {
	Repo      repo.Repo
	Monitor   ConnMonitor
	Tunnel    TunnelStatuser
	Inspector DeviceInspector

	deps modkit.Deps
	cfg  Config
}

// New constructs a nightwatch service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("nightwatch.Service requires a non nil TxRunner")
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.GraceBuffer <= 0 {
		cfg.GraceBuffer = 30 * time.Minute
	}
	cfg.Offsets = pstrings.IfEmpty(cfg.Offsets, []int{0, 1, 7, 14, 30, 60, 90})
	if cfg.GapTolerance <= 0 {
		cfg.GapTolerance = 10 * time.Minute
	}
	if cfg.RollupMinGap <= 0 {
		cfg.RollupMinGap = 30 * time.Minute
	}
	if cfg.AlertSubject == "" {
		cfg.AlertSubject = "footfall.alerts"
	}
	if cfg.ReportSubject == "" {
		cfg.ReportSubject = "footfall.reports.weekly"
	}
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Svc{
		Repo:      repo.NewPG().Bind(deps.PG),
		Monitor:   NewBusMonitor(cfg.BusMonURL),
		Tunnel:    NewTunnelAdmin(cfg.TunnelURL, cfg.TunnelUser, cfg.TunnelPass),
		Inspector: NewInspector(cfg.Diag, deps.Log),
		deps:      deps,
		cfg:       cfg,
	}
}

type siteHealth struct {
	site domain.Site
	h    domain.AntennaHealth
}

// CheckHealth sweeps every antenna of every currently open site, persists
// alert records and publishes the severity payload for the notifier
func (s *Svc) CheckHealth(ctx context.Context) error {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := s.deps.Log.With().Str("run_id", runID).Logger()
	now := s.cfg.Now().In(s.cfg.TZ)

	sites, err := s.Repo.WatchSites(ctx)
	if err != nil {
		return err
	}

	busSet, err := s.Monitor.Connected(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("bus monitor unreachable, connectivity unknown")
		busSet = nil
	}
	tunnels, err := s.Tunnel.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("tunnel admin unreachable, tunnel state unknown")
		tunnels = nil
	}

	var checked []siteHealth
	for _, site := range sites {
		if !s.openNow(site, now) {
			continue
		}
		slog := log.With().Int64("site_id", site.ID).Logger()
		for _, antenna := range site.Antennas {
			h, err := s.probe(ctx, antenna, now)
			if err != nil {
				slog.Warn().Str("antenna", antenna).Err(err).
					Msg("staleness probe failed, skipping antenna")
				continue
			}
			h.BusConnected = busSet[antenna]
			if ts, ok := tunnels[antenna]; ok {
				h.TunnelOnline = ts.Online
				h.RemotePort = ts.RemotePort
			}
			checked = append(checked, siteHealth{site: site, h: h})
		}
	}

	// Diagnostics only where the stream is already over the staleness
	// threshold and a tunnel path exists
	targets := map[string]int{}
	for _, c := range checked {
		stale := !c.h.HasRecord || c.h.DeliveryAge >= s.cfg.Thresholds.Delivery
		if stale && c.h.TunnelOnline {
			targets[c.h.Antenna] = c.h.RemotePort
		}
	}
	diags := map[string]domain.Diagnostics{}
	if len(targets) > 0 {
		diags = s.Inspector.InspectAll(ctx, targets)
	}

	seen := map[domain.Severity]map[string]bool{domain.L1: {}, domain.L2: {}}
	payload := map[domain.Severity][]string{}
	for _, c := range checked {
		c.h.Diag = diags[c.h.Antenna]
		sev, bad := Decide(c.h, s.cfg.Thresholds)
		if !bad || seen[sev][c.h.Antenna] {
			continue
		}
		seen[sev][c.h.Antenna] = true
		payload[sev] = append(payload[sev], c.h.Antenna)

		rec := domain.AlertRecord{
			Severity:   sev,
			Antenna:    c.h.Antenna,
			ReportedAt: now,
			SiteCtx:    siteCtx(c.site, c.h),
			RunID:      runID,
		}
		if err := s.Repo.InsertAlert(ctx, rec); err != nil {
			log.Warn().Str("antenna", c.h.Antenna).Err(err).Msg("alert insert failed")
		}
	}

	log.Info().Int("antennas", len(checked)).
		Int("l1", len(payload[domain.L1])).Int("l2", len(payload[domain.L2])).
		Msg("health sweep finished")

	if len(payload) > 0 && s.deps.Bus != nil {
		body, err := json.Marshal(map[string]any{
			"run_id":      runID,
			"reported_at": now,
			"l1":          payload[domain.L1],
			"l2":          payload[domain.L2],
		})
		if err != nil {
			return err
		}
		if err := s.deps.Bus.Publish(s.cfg.AlertSubject, body); err != nil {
			log.Warn().Err(err).Msg("alert payload publish failed")
		}
	}
	return nil
}

// openNow reports whether the site is inside its open window, past the
// opening grace buffer
func (s *Svc) openNow(site domain.Site, now time.Time) bool {
	open, closeH, closeM := site.Hours.For(now)
	openAt := time.Date(now.Year(), now.Month(), now.Day(), open, 0, 0, 0, s.cfg.TZ)
	closeAt := time.Date(now.Year(), now.Month(), now.Day(), closeH, closeM, 0, 0, s.cfg.TZ)
	return !now.Before(openAt.Add(s.cfg.GraceBuffer)) && now.Before(closeAt)
}

// probe walks the day offsets against the matching monthly partitions until
// a row is found, then derives the ages the decision tree works on
func (s *Svc) probe(ctx context.Context, antenna string, now time.Time) (domain.AntennaHealth, error) {
	h := domain.AntennaHealth{Antenna: antenna}

	rec, found, err := s.probeMonths(ctx, antenna, now, s.Repo.LastRecord)
	if err != nil {
		return h, err
	}
	if !found {
		return h, nil
	}
	h.HasRecord = true
	h.DeliveryAge = now.Sub(rec.DeliveryTime)
	h.RTAge = now.Sub(rec.RT)
	h.ClockGap = clockGap(rec)

	correct, found, err := s.probeMonths(ctx, antenna, now, s.Repo.LastCorrectRecord)
	if err != nil {
		return h, err
	}
	if found {
		h.HasCorrect = true
		h.CorrectAge = now.Sub(correct.DeliveryTime)
	}
	return h, nil
}

type monthProbe func(ctx context.Context, antenna string, year, month int) (domain.Record, bool, error)

func (s *Svc) probeMonths(
	ctx context.Context, antenna string, now time.Time, fn monthProbe,
) (domain.Record, bool, error) {
	type ym struct{ y, m int }
	seen := map[ym]bool{}
	for _, off := range s.cfg.Offsets {
		day := now.AddDate(0, 0, -off)
		key := ym{day.Year(), int(day.Month())}
		if seen[key] {
			continue
		}
		seen[key] = true
		rec, found, err := fn(ctx, antenna, key.y, key.m)
		if err != nil || found {
			return rec, found, err
		}
	}
	return domain.Record{}, false, nil
}

// clockGap measures how badly the newest row violates rt <= upload <=
// delivery. A missing upload stamp cannot be judged and counts as in order
func clockGap(rec domain.Record) time.Duration {
	if rec.UploadTime == nil {
		return 0
	}
	gap := rec.RT.Sub(*rec.UploadTime)
	if d := rec.UploadTime.Sub(rec.DeliveryTime); d > gap {
		gap = d
	}
	if gap < 0 {
		return 0
	}
	return gap
}

// siteCtx snapshots the context an operator needs when the alert fires
func siteCtx(site domain.Site, h domain.AntennaHealth) []byte {
	ctx := map[string]any{
		"site_id":       site.ID,
		"site_name":     site.Name,
		"bus_connected": h.BusConnected,
		"tunnel_online": h.TunnelOnline,
		"has_record":    h.HasRecord,
	}
	if h.HasRecord {
		ctx["delivery_age_s"] = int(h.DeliveryAge.Seconds())
		ctx["rt_age_s"] = int(h.RTAge.Seconds())
		ctx["clock_gap_s"] = int(h.ClockGap.Seconds())
	}
	if h.Diag.Known {
		ctx["wifi_signal"] = h.Diag.WifiSignal
		ctx["ping_loss_pct"] = h.Diag.PingLossPct
		ctx["queue_depth"] = h.Diag.QueueDepth
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
