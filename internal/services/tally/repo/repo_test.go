package repo

import (
	"context"
	"strings"
	"testing"
	"time"

	"footfall/internal/modkit/repokit"
	"footfall/internal/platform/store"
	"footfall/internal/services/tally/domain"
)

type sqlCall struct {
	sql  string
	args []any
}

// fakeRunner records every statement and serves canned rows to Query
type fakeRunner struct {
	calls   []sqlCall
	rows    [][]any
	txCalls int
}

func (f *fakeRunner) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.calls = append(f.calls, sqlCall{sql: sql, args: args})
	var zero store.CommandTag
	return zero, nil
}

func (f *fakeRunner) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.calls = append(f.calls, sqlCall{sql: sql, args: args})
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeRunner) QueryRow(_ context.Context, sql string, args ...any) store.Row {
	f.calls = append(f.calls, sqlCall{sql: sql, args: args})
	return nil
}

func (f *fakeRunner) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	f.txCalls++
	return fn(f)
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i := range dest {
		switch d := dest[i].(type) {
		case *int:
			*d = row[i].(int)
		case *int16:
			*d = row[i].(int16)
		case *string:
			*d = row[i].(string)
		case *time.Time:
			*d = row[i].(time.Time)
		}
	}
	return nil
}

func (r *fakeRows) Err() error        { return nil }
func (r *fakeRows) Close()            {}
func (r *fakeRows) Columns() []string { return nil }

var (
	repoFrom = time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	repoTo   = repoFrom.AddDate(0, 0, 1)
)

func TestDetections_PrunesByAntennaColumn(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{rows: [][]any{
		{repoFrom.Add(10 * time.Hour), "aabbcc000001", "SamsungE", int16(0)},
	}}
	r := NewPG().Bind(f)

	out, err := r.Detections(context.Background(), "aabbccddee01", repoFrom, repoTo, -70)
	if err != nil {
		t.Fatalf("Detections: %v", err)
	}
	if len(out) != 1 || out[0].SA != "aabbcc000001" || out[0].Vendor != "SamsungE" {
		t.Fatalf("sightings = %+v", out)
	}

	c := f.calls[0]
	if !strings.Contains(c.sql, "FROM raw_event\n") || !strings.Contains(c.sql, "antenna = $1") {
		t.Fatalf("query does not filter the base table on antenna:\n%s", c.sql)
	}
	if c.args[0] != "aabbccddee01" {
		t.Fatalf("antenna arg = %v", c.args[0])
	}
}

func TestDetections_RejectsUnnormalizedAntenna(t *testing.T) {
	t.Parallel()

	r := NewPG().Bind(&fakeRunner{})
	if _, err := r.Detections(context.Background(), "AA:BB:CC:DD:EE:01", repoFrom, repoTo, -70); err == nil {
		t.Fatal("expected invalid argument error")
	}
}

func TestCorrelatedHourly_RawCountInsideTimeZonedTx(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{rows: [][]any{{10, 3}}}
	r := NewPG().Bind(repokit.WithBeginHooks(f, SessionTimeZone(time.UTC)))

	a := domain.Antenna{ID: "aabbccddee01", MinRSSI: -70}
	b := domain.Antenna{ID: "aabbccddee02", MinRSSI: -65}
	out, err := r.CorrelatedHourly(context.Background(), a, b, repoFrom, repoTo, time.Minute)
	if err != nil {
		t.Fatalf("CorrelatedHourly: %v", err)
	}
	if out[10] != 3 {
		t.Fatalf("hour 10 = %d, want 3", out[10])
	}

	// the hour bucketing depends on the session TimeZone, so the query must
	// run in a tx whose first statement pins it
	if f.txCalls != 1 {
		t.Fatalf("tx calls = %d, want 1", f.txCalls)
	}
	if len(f.calls) != 2 {
		t.Fatalf("statements = %d, want set_config then the join", len(f.calls))
	}
	if !strings.Contains(f.calls[0].sql, "set_config('TimeZone'") || f.calls[0].args[0] != "UTC" {
		t.Fatalf("first statement is not the TimeZone pin: %q %v", f.calls[0].sql, f.calls[0].args)
	}

	join := f.calls[1]
	// every joined sighting counts; deduplicating addresses would starve the
	// calibration model of its activity signal
	if !strings.Contains(join.sql, "count(1)") || strings.Contains(join.sql, "DISTINCT") {
		t.Fatalf("join must count rows, not distinct addresses:\n%s", join.sql)
	}
	if strings.Count(join.sql, "rssi BETWEEN") != 2 || strings.Count(join.sql, "AND 0") < 2 {
		t.Fatalf("join must bound rssi above at 0:\n%s", join.sql)
	}
	if !strings.Contains(join.sql, "antenna = $1") || !strings.Contains(join.sql, "antenna = $2") {
		t.Fatalf("join must filter both antennas on the partition column:\n%s", join.sql)
	}
	if join.args[0] != "aabbccddee01" || join.args[1] != "aabbccddee02" {
		t.Fatalf("antenna args = %v", join.args[:2])
	}
	if join.args[4] != int16(-70) || join.args[5] != int16(-65) {
		t.Fatalf("rssi floor args = %v", join.args[4:6])
	}
}

func TestCorrelatedHourly_PlainQueryerSkipsTx(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{rows: [][]any{{11, 2}}}
	r := &queries{q: plainQueryer{f}}

	a := domain.Antenna{ID: "aabbccddee01", MinRSSI: -70}
	b := domain.Antenna{ID: "aabbccddee02", MinRSSI: -65}
	out, err := r.CorrelatedHourly(context.Background(), a, b, repoFrom, repoTo, time.Minute)
	if err != nil {
		t.Fatalf("CorrelatedHourly: %v", err)
	}
	if out[11] != 2 {
		t.Fatalf("hour 11 = %d, want 2", out[11])
	}
	if f.txCalls != 0 {
		t.Fatalf("tx calls = %d, want 0 for a plain queryer", f.txCalls)
	}
}

// plainQueryer hides the Tx method so only the Queryer surface shows
type plainQueryer struct{ repokit.Queryer }
