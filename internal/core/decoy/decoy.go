// Package decoy removes rotating-address decoy traffic from a day of sightings.
//
// Some handsets broadcast bursts of probe requests that walk through a block
// of addresses sharing one vendor prefix. Left in, one such handset inflates
// the unique-device count by the size of its address block. The filter looks
// for prefix groups whose members recur in a tight time window and drops the
// whole group.
package decoy

import (
	"sort"
	"time"

	"footfall/internal/core/mac"
	"footfall/internal/core/oui"
)

// Sighting is one row of the filter's working set
type Sighting struct {
	RT        time.Time
	SA        string
	Vendor    string
	FrameType int16
}

// Params tunes the recurrence heuristic
type Params struct {
	// Lag is the row offset compared against Span: if the sighting Lag rows
	// ahead of the current one (same prefix group) is within Span, the group
	// is decoy traffic
	Lag int
	// Span is the recurrence window
	Span time.Duration
}

// Defaults returns the parameters the heuristic was tuned with
func Defaults() Params {
	return Params{Lag: 4, Span: 20 * time.Minute}
}

// Filter returns all sightings whose address does not belong to a decoy
// prefix group. antennaCount bounds the legitimate recurrence of a single
// address: an address seen more often than there are antennas is set aside
// before the lag check so a parked phone cannot condemn its prefix group
func Filter(sightings []Sighting, antennaCount int, p Params) []Sighting {
	if p.Lag <= 0 {
		p.Lag = 4
	}
	if p.Span <= 0 {
		p.Span = 20 * time.Minute
	}
	if antennaCount <= 0 {
		antennaCount = 1
	}

	all := make([]Sighting, len(sightings))
	copy(all, sightings)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].SA != all[j].SA {
			return all[i].SA < all[j].SA
		}
		return all[i].RT.Before(all[j].RT)
	})

	// Candidate rows: stable vendor, probe-request frame
	var cands []Sighting
	for _, s := range all {
		if oui.Stable(s.Vendor) && s.FrameType == 0 {
			cands = append(cands, s)
		}
	}

	groups := map[string][]Sighting{}
	for _, s := range cands {
		pfx := mac.Prefix(s.SA)
		groups[pfx] = append(groups[pfx], s)
	}

	excluded := map[string]struct{}{}
	for _, grp := range groups {
		counts := map[string]int{}
		for _, s := range grp {
			counts[s.SA]++
		}
		// Addresses recurring beyond the antenna count are legitimate repeats
		kept := grp[:0:0]
		for _, s := range grp {
			if counts[s.SA] <= antennaCount {
				kept = append(kept, s)
			}
		}
		for i := range kept {
			if i+p.Lag >= len(kept) {
				break
			}
			if kept[i+p.Lag].RT.Sub(kept[i].RT) <= p.Span {
				for _, s := range kept {
					excluded[s.SA] = struct{}{}
				}
				break
			}
		}
	}

	out := make([]Sighting, 0, len(all))
	for _, s := range all {
		if _, drop := excluded[s.SA]; !drop {
			out = append(out, s)
		}
	}
	return out
}
