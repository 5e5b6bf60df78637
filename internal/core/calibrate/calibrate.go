// Package calibrate turns hourly device populations into customer estimates
// and clamps the output to a site's opening window.
package calibrate

import (
	"math"
	"time"
)

// Algorithm versions
const (
	V1 = 1
	V2 = 2
)

// Profile is a site's calibration profile
type Profile struct {
	Version     int
	AndroidRate float64
	WifiRate    float64

	// v2 model parameters
	ModelSlope     float64
	ManualSlope    float64
	ModelIntercept float64
	ModelUpper     float64
}

// Complete reports whether the profile can produce estimates.
// An incomplete profile means the site is skipped, never zero-filled
func (p Profile) Complete() bool {
	if p.AndroidRate <= 0 || p.WifiRate <= 0 {
		return false
	}
	switch p.Version {
	case V1:
		return true
	case V2:
		return p.ManualSlope != 0
	default:
		return false
	}
}

// Estimate converts one hour's stable and randomized device counts into a
// customer estimate.
//
// v1 extrapolates from the stable population alone. v2 folds in the
// randomized population, capped by a linear model of how many randomized
// sightings a given stable population can plausibly produce
func (p Profile) Estimate(stable, random int) float64 {
	divisor := p.AndroidRate * p.WifiRate
	if p.Version == V1 {
		return float64(stable) / divisor
	}
	m := math.Min(float64(random), p.ModelSlope*float64(stable)+p.ModelUpper)
	recovered := math.Max(0, (m-p.ModelIntercept)/p.ManualSlope)
	return math.Round((recovered + float64(stable)) / divisor)
}

// Window is the inclusive hour range [OpenHour, LastHour] a run may emit.
// LastHour < OpenHour means the window is empty
type Window struct {
	OpenHour int
	LastHour int
}

// Contains reports whether hour falls inside the window
func (w Window) Contains(hour int) bool { return hour >= w.OpenHour && hour <= w.LastHour }

// ClampHours computes the emit window for one day.
//
// For a finished day the window runs to the closing hour; a close on the
// exact hour yields no credit for the barely-open final hour. A same-day
// partial run instead truncates at now, with the same on-the-hour rule so
// a rerun later in the day only ever extends the window
func ClampHours(openHour, closeHour, closeMin int, now time.Time, sameDay bool) Window {
	end := closeHour
	shift := 0
	if closeMin == 0 {
		shift = 1
	}
	if sameDay {
		end = now.Hour()
		shift = 0
		if now.Minute() == 0 {
			shift = 1
		}
	}
	return Window{OpenHour: openHour, LastHour: end - shift}
}
