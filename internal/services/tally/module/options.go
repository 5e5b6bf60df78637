package module

import (
	"time"

	"footfall/internal/core/decoy"
	"footfall/internal/platform/config"
)

// Options controls estimation behavior. Values may also be read from env
type Options struct {
	DecoyLag   int
	DecoySpan  time.Duration
	CorrWindow time.Duration
	TZ         *time.Location
}

// FromConfig reads options using the TALLY_ prefix
func FromConfig(cfg config.Conf) Options {
	in := cfg.Prefix("TALLY_")
	tz, err := time.LoadLocation(in.MayString("TZ", "Asia/Taipei"))
	if err != nil {
		tz = time.UTC
	}
	d := decoy.Defaults()
	return Options{
		DecoyLag:   in.MayInt("DECOY_LAG", d.Lag),
		DecoySpan:  in.MayDuration("DECOY_SPAN", d.Span),
		CorrWindow: in.MayDuration("CORRELATION_WINDOW", time.Minute),
		TZ:         tz,
	}
}
