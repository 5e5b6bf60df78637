package module

import (
	"time"

	"footfall/internal/platform/config"
)

// Options controls provisioning behavior. Values may also be read from env
type Options struct {
	Roles []string
	TZ    *time.Location
}

// FromConfig reads options using the PROVISION_ prefix
func FromConfig(cfg config.Conf) Options {
	pv := cfg.Prefix("PROVISION_")
	tz, err := time.LoadLocation(pv.MayString("TZ", "Asia/Taipei"))
	if err != nil {
		tz = time.UTC
	}
	return Options{
		Roles: pv.MayCSV("GRANT_ROLES", nil),
		TZ:    tz,
	}
}
