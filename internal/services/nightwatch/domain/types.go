// Package domain holds nightwatch's domain types and ports
package domain

import (
	"time"
)

// Severity grades an antenna problem
type Severity string

// Alert severities. L1 means the antenna is effectively dark and needs
// hands-on intervention; L2 means it is degraded but still delivering
const (
	L1 Severity = "L1"
	L2 Severity = "L2"
)

// OpeningHours is a site's weekly opening schedule
type OpeningHours struct {
	WeekdayOpen     int
	WeekdayClose    int
	WeekdayCloseMin int
	WeekendOpen     int
	WeekendClose    int
	WeekendCloseMin int
}

// For returns the schedule in force on the given date
func (h OpeningHours) For(date time.Time) (open, close, closeMin int) {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return h.WeekendOpen, h.WeekendClose, h.WeekendCloseMin
	default:
		return h.WeekdayOpen, h.WeekdayClose, h.WeekdayCloseMin
	}
}

// Site is one store with the antennas under watch
type Site struct {
	ID       int64
	Name     string
	Antennas []string
	Hours    OpeningHours
	Ignored  bool
}

// Record is the newest row found by a staleness probe
type Record struct {
	RT           time.Time
	UploadTime   *time.Time
	DeliveryTime time.Time
}

// Diagnostics is what an on-device inspection reports. Known is false when
// the inspection failed or was never attempted
type Diagnostics struct {
	Known       bool
	WifiSignal  int
	PingLossPct float64
	QueueDepth  int
}

// AntennaHealth is everything the decision tree sees for one antenna
type AntennaHealth struct {
	Antenna string

	HasRecord   bool
	DeliveryAge time.Duration
	RTAge       time.Duration

	// ClockGap is how far the antenna clock ordering is off on the newest
	// row; zero when rt <= upload <= delivery holds
	ClockGap time.Duration
	// HasCorrect and CorrectAge describe the newest row whose timestamps
	// are correctly ordered
	HasCorrect bool
	CorrectAge time.Duration

	BusConnected bool
	TunnelOnline bool
	RemotePort   int

	Diag Diagnostics
}

// AlertRecord is one persisted alert
type AlertRecord struct {
	Severity   Severity
	Antenna    string
	ReportedAt time.Time
	SiteCtx    []byte // jsonb snapshot of the site context
	RunID      string
}

// Gap is one missing_record row: an interval with no deliveries inside the
// open window
type Gap struct {
	SiteID   int64
	SiteName string
	Antenna  string
	Start    time.Time
	End      time.Time
	L1Alerts int
	L2Alerts int
}

// Interval returns the gap length
func (g Gap) Interval() time.Duration { return g.End.Sub(g.Start) }
