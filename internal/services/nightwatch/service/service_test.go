package service

import (
	"context"
	"testing"
	"time"

	"footfall/internal/modkit"
	"footfall/internal/services/nightwatch/domain"
)

type fakeRepo struct {
	sites   []domain.Site
	records map[string]domain.Record
	correct map[string]domain.Record
	minutes map[string][]time.Time
	weekly  []domain.Gap

	alerts []domain.AlertRecord
	gaps   []domain.Gap
}

func (f *fakeRepo) WatchSites(context.Context) ([]domain.Site, error) { return f.sites, nil }

func (f *fakeRepo) LastRecord(_ context.Context, antenna string, _, _ int) (domain.Record, bool, error) {
	rec, ok := f.records[antenna]
	return rec, ok, nil
}

func (f *fakeRepo) LastCorrectRecord(_ context.Context, antenna string, _, _ int) (domain.Record, bool, error) {
	rec, ok := f.correct[antenna]
	return rec, ok, nil
}

func (f *fakeRepo) InsertAlert(_ context.Context, a domain.AlertRecord) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeRepo) DistinctMinutes(_ context.Context, antenna string, _, _ time.Time) ([]time.Time, error) {
	return f.minutes[antenna], nil
}

func (f *fakeRepo) CountAlerts(context.Context, string, time.Time, time.Time) (int, int, error) {
	return 1, 2, nil
}

func (f *fakeRepo) InsertGap(_ context.Context, g domain.Gap) error {
	f.gaps = append(f.gaps, g)
	return nil
}

func (f *fakeRepo) WeeklyGaps(context.Context, time.Time, time.Time, time.Duration) ([]domain.Gap, error) {
	return f.weekly, nil
}

type fakeMonitor struct{ connected map[string]bool }

func (f *fakeMonitor) Connected(context.Context) (map[string]bool, error) {
	return f.connected, nil
}

type fakeTunnel struct{ states map[string]TunnelState }

func (f *fakeTunnel) Status(context.Context) (map[string]TunnelState, error) {
	return f.states, nil
}

type fakeInspector struct {
	asked map[string]int
	diags map[string]domain.Diagnostics
}

func (f *fakeInspector) InspectAll(_ context.Context, ports map[string]int) map[string]domain.Diagnostics {
	f.asked = ports
	return f.diags
}

// Wednesday noon, well inside weekday opening hours
var watchNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func watchSite(antennas ...string) domain.Site {
	return domain.Site{
		ID:       1,
		Name:     "shop",
		Antennas: antennas,
		Hours:    domain.OpeningHours{WeekdayOpen: 10, WeekdayClose: 22, WeekendOpen: 11, WeekendClose: 21},
	}
}

func newWatchSvc(f *fakeRepo, mon *fakeMonitor, tun *fakeTunnel, ins *fakeInspector, now time.Time) *Svc {
	return &Svc{
		Repo:      f,
		Monitor:   mon,
		Tunnel:    tun,
		Inspector: ins,
		deps:      modkit.Deps{},
		cfg: Config{
			Thresholds:   DefaultThresholds(),
			GraceBuffer:  30 * time.Minute,
			Offsets:      []int{0, 1, 7, 14, 30, 60, 90},
			GapTolerance: 10 * time.Minute,
			RollupMinGap: 30 * time.Minute,
			TZ:           time.UTC,
			Now:          func() time.Time { return now },
		},
	}
}

func rec(rt, upload, delivery time.Time) domain.Record {
	return domain.Record{RT: rt, UploadTime: &upload, DeliveryTime: delivery}
}

func TestCheckHealth_GradesAndPersists(t *testing.T) {
	fresh := rec(watchNow.Add(-5*time.Minute), watchNow.Add(-4*time.Minute), watchNow.Add(-4*time.Minute))
	stale := rec(watchNow.Add(-45*time.Minute), watchNow.Add(-44*time.Minute), watchNow.Add(-44*time.Minute))

	f := &fakeRepo{
		// aabbccddee01 has no record at all, aabbccddee02 is healthy,
		// aabbccddee03 is stale with data queued behind a weak link
		sites:   []domain.Site{watchSite("aabbccddee01", "aabbccddee02", "aabbccddee03")},
		records: map[string]domain.Record{"aabbccddee02": fresh, "aabbccddee03": stale},
		correct: map[string]domain.Record{"aabbccddee02": fresh, "aabbccddee03": stale},
	}
	mon := &fakeMonitor{connected: map[string]bool{"aabbccddee02": true}}
	tun := &fakeTunnel{states: map[string]TunnelState{
		"aabbccddee03": {Online: true, RemotePort: 7003},
	}}
	ins := &fakeInspector{diags: map[string]domain.Diagnostics{
		"aabbccddee03": {Known: true, WifiSignal: 30, QueueDepth: 3},
	}}
	s := newWatchSvc(f, mon, tun, ins, watchNow)

	if err := s.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}

	if len(ins.asked) != 1 || ins.asked["aabbccddee03"] != 7003 {
		t.Fatalf("inspected %v, want only aabbccddee03 via port 7003", ins.asked)
	}

	bySev := map[domain.Severity][]string{}
	for _, a := range f.alerts {
		bySev[a.Severity] = append(bySev[a.Severity], a.Antenna)
		if a.RunID == "" || len(a.SiteCtx) == 0 {
			t.Fatalf("alert missing run id or context: %+v", a)
		}
	}
	if len(bySev[domain.L1]) != 1 || bySev[domain.L1][0] != "aabbccddee01" {
		t.Fatalf("L1 alerts = %v", bySev[domain.L1])
	}
	if len(bySev[domain.L2]) != 1 || bySev[domain.L2][0] != "aabbccddee03" {
		t.Fatalf("L2 alerts = %v", bySev[domain.L2])
	}
}

func TestCheckHealth_SkipsClosedSites(t *testing.T) {
	f := &fakeRepo{sites: []domain.Site{watchSite("aabbccddee01")}}
	mon := &fakeMonitor{}
	tun := &fakeTunnel{}
	ins := &fakeInspector{}
	s := newWatchSvc(f, mon, tun, ins, time.Date(2026, 1, 7, 23, 0, 0, 0, time.UTC))

	if err := s.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if len(f.alerts) != 0 {
		t.Fatalf("closed site raised %d alerts", len(f.alerts))
	}
}

func TestCheckHealth_GraceBufferHoldsAlerts(t *testing.T) {
	f := &fakeRepo{sites: []domain.Site{watchSite("aabbccddee01")}}
	s := newWatchSvc(f, &fakeMonitor{}, &fakeTunnel{}, &fakeInspector{},
		time.Date(2026, 1, 7, 10, 15, 0, 0, time.UTC))

	if err := s.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if len(f.alerts) != 0 {
		t.Fatalf("alert raised %d minutes after opening", 15)
	}
}

func TestDetectGaps_SingleGapWithSentinels(t *testing.T) {
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	site := watchSite("aabbccddee01")
	site.Hours.WeekdayClose = 11

	f := &fakeRepo{
		sites: []domain.Site{site},
		minutes: map[string][]time.Time{
			"aabbccddee01": {
				day.Add(10*time.Hour + 5*time.Minute),
				day.Add(10*time.Hour + 50*time.Minute),
			},
		},
	}
	s := newWatchSvc(f, &fakeMonitor{}, &fakeTunnel{}, &fakeInspector{}, watchNow)

	if err := s.DetectGaps(context.Background(), day); err != nil {
		t.Fatalf("DetectGaps: %v", err)
	}
	if len(f.gaps) != 1 {
		t.Fatalf("recorded %d gaps, want 1", len(f.gaps))
	}
	g := f.gaps[0]
	if !g.Start.Equal(day.Add(10*time.Hour+5*time.Minute)) ||
		!g.End.Equal(day.Add(10*time.Hour+50*time.Minute)) {
		t.Fatalf("gap = [%v, %v)", g.Start, g.End)
	}
	if g.L1Alerts != 1 || g.L2Alerts != 2 {
		t.Fatalf("alert counts = (%d, %d)", g.L1Alerts, g.L2Alerts)
	}
}

func TestDetectGaps_TrailingSilenceIsItsOwnGap(t *testing.T) {
	// Delivery stops at 10:50 and never resumes: the close sentinel turns
	// the rest of the day into a recorded gap alongside the morning one
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	site := watchSite("aabbccddee01")
	site.Hours.WeekdayClose = 21

	f := &fakeRepo{
		sites: []domain.Site{site},
		minutes: map[string][]time.Time{
			"aabbccddee01": {
				day.Add(10*time.Hour + 5*time.Minute),
				day.Add(10*time.Hour + 50*time.Minute),
			},
		},
	}
	s := newWatchSvc(f, &fakeMonitor{}, &fakeTunnel{}, &fakeInspector{}, watchNow)
	s.cfg.GapTolerance = 5 * time.Minute

	if err := s.DetectGaps(context.Background(), day); err != nil {
		t.Fatalf("DetectGaps: %v", err)
	}
	if len(f.gaps) != 2 {
		t.Fatalf("recorded %d gaps, want 2", len(f.gaps))
	}
	if !f.gaps[0].Start.Equal(day.Add(10*time.Hour+5*time.Minute)) ||
		!f.gaps[0].End.Equal(day.Add(10*time.Hour+50*time.Minute)) {
		t.Fatalf("first gap = [%v, %v)", f.gaps[0].Start, f.gaps[0].End)
	}
	if !f.gaps[1].Start.Equal(day.Add(10*time.Hour+50*time.Minute)) ||
		!f.gaps[1].End.Equal(day.Add(21*time.Hour)) {
		t.Fatalf("trailing gap = [%v, %v)", f.gaps[1].Start, f.gaps[1].End)
	}
}

func TestDetectGaps_SilentAntennaIsOneGap(t *testing.T) {
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	site := watchSite("aabbccddee01")

	f := &fakeRepo{sites: []domain.Site{site}}
	s := newWatchSvc(f, &fakeMonitor{}, &fakeTunnel{}, &fakeInspector{}, watchNow)

	if err := s.DetectGaps(context.Background(), day); err != nil {
		t.Fatalf("DetectGaps: %v", err)
	}
	if len(f.gaps) != 1 {
		t.Fatalf("recorded %d gaps, want 1", len(f.gaps))
	}
	g := f.gaps[0]
	if !g.Start.Equal(day.Add(10*time.Hour)) || !g.End.Equal(day.Add(22*time.Hour)) {
		t.Fatalf("gap = [%v, %v), want the whole open window", g.Start, g.End)
	}
}

func TestWeeklyReport_NoBusIsStillClean(t *testing.T) {
	f := &fakeRepo{weekly: []domain.Gap{{
		SiteID: 1, SiteName: "shop", Antenna: "aabbccddee01",
		Start: watchNow.Add(-24 * time.Hour), End: watchNow.Add(-23 * time.Hour),
	}}}
	s := newWatchSvc(f, &fakeMonitor{}, &fakeTunnel{}, &fakeInspector{}, watchNow)

	if err := s.WeeklyReport(context.Background()); err != nil {
		t.Fatalf("WeeklyReport: %v", err)
	}
}
