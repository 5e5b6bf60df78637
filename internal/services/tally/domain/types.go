// Package domain holds tally's domain types and ports
package domain

import (
	"time"

	"footfall/internal/core/calibrate"
)

// Antenna is one receiver at a site with its detection floor
type Antenna struct {
	ID      string
	MinRSSI int16
}

// OpeningHours is a site's weekly opening schedule. Opening minutes are not
// tracked; the count window always starts on the opening hour
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

// Site is one store with its active antennas and calibration profile
type Site struct {
	ID       int64
	Name     string
	Antennas []Antenna
	Hours    OpeningHours
	Profile  calibrate.Profile
}

// HourCount is one upserted output row
type HourCount struct {
	SiteID int64
	TsHour time.Time
	Count  float64
}
