package module

import (
	"time"

	"footfall/internal/platform/config"
)

// Options controls ingest behavior. Values may also be read from env
type Options struct {
	Subject      string
	RetryBackoff time.Duration
	TZ           *time.Location
}

// FromConfig reads options using the INGEST_ prefix
func FromConfig(cfg config.Conf) Options {
	in := cfg.Prefix("INGEST_")
	tz, err := time.LoadLocation(in.MayString("TZ", "Asia/Taipei"))
	if err != nil {
		tz = time.UTC
	}
	return Options{
		Subject:      in.MayString("SUBJECT", "probe.>"),
		RetryBackoff: in.MayDuration("RETRY_BACKOFF", 5*time.Second),
		TZ:           tz,
	}
}
