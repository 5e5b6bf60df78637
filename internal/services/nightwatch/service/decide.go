package service

import (
	"time"

	"footfall/internal/services/nightwatch/domain"
)

// Thresholds tunes the health decision tree
type Thresholds struct {
	// Delivery is the staleness limit on delivery_time
	Delivery time.Duration
	// Reception is the lag limit on rt while delivery is still fresh
	Reception time.Duration
	// Clock is the tolerated timestamp-ordering error
	Clock time.Duration

	// Diagnostics limits. Signal strengths below MinSignal or ping loss
	// above MaxLossPct mark the uplink as the likely culprit
	MinSignal  int
	MaxLossPct float64
}

// DefaultThresholds returns the limits the sweep was tuned with
func DefaultThresholds() Thresholds {
	return Thresholds{
		Delivery:   20 * time.Minute,
		Reception:  20 * time.Minute,
		Clock:      10 * time.Minute,
		MinSignal:  46,
		MaxLossPct: 20,
	}
}

// Decide grades one antenna. ok is false when the antenna is healthy.
//
// Precedence: a missing record or a persistently wrong clock is L1 because
// nothing downstream of that antenna can be trusted. A fresh stream whose
// rt lags is L2 (data arrives but late). A stale stream is L1 unless the
// diagnostics point at a weak uplink with data still queued on the device,
// which the field team handles as L2. Intermittent clock drift on an
// otherwise healthy stream is appended as L2
func Decide(h domain.AntennaHealth, t Thresholds) (domain.Severity, bool) {
	if !h.HasRecord {
		return domain.L1, true
	}

	clockBad := h.ClockGap >= t.Clock
	if clockBad && (!h.HasCorrect || h.CorrectAge >= t.Delivery) {
		return domain.L1, true
	}

	if h.DeliveryAge < t.Delivery {
		if h.RTAge >= t.Reception {
			return domain.L2, true
		}
		if clockBad {
			return domain.L2, true
		}
		return "", false
	}

	if h.Diag.Known && h.Diag.QueueDepth > 0 &&
		(h.Diag.WifiSignal < t.MinSignal || h.Diag.PingLossPct > t.MaxLossPct) {
		return domain.L2, true
	}
	return domain.L1, true
}
