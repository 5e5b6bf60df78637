package module

import (
	"time"

	"footfall/internal/platform/config"
	"footfall/internal/services/nightwatch/service"
)

// Options controls watcher behavior. Values may also be read from env
type Options struct {
	DeliveryThreshold  time.Duration
	ReceptionThreshold time.Duration
	ClockThreshold     time.Duration
	MinSignal          int
	MaxLossPct         float64

	GraceBuffer  time.Duration
	GapTolerance time.Duration
	RollupMinGap time.Duration

	AlertSubject  string
	ReportSubject string

	BusMonURL  string
	TunnelURL  string
	TunnelUser string
	TunnelPass string

	SSHHost     string
	SSHUser     string
	SSHPassword string
	PingTarget  string
	QueueDir    string
	PoolSize    int
	PerAntenna  time.Duration

	TZ *time.Location
}

// FromConfig reads options using the NIGHTWATCH_ prefix
func FromConfig(cfg config.Conf) Options {
	in := cfg.Prefix("NIGHTWATCH_")
	tz, err := time.LoadLocation(in.MayString("TZ", "Asia/Taipei"))
	if err != nil {
		tz = time.UTC
	}
	th := service.DefaultThresholds()
	return Options{
		DeliveryThreshold:  in.MayDuration("DELIVERY_THRESHOLD", th.Delivery),
		ReceptionThreshold: in.MayDuration("RECEPTION_THRESHOLD", th.Reception),
		ClockThreshold:     in.MayDuration("CLOCK_THRESHOLD", th.Clock),
		MinSignal:          in.MayInt("MIN_SIGNAL", th.MinSignal),
		MaxLossPct:         in.MayFloat64("MAX_LOSS_PCT", th.MaxLossPct),

		GraceBuffer:  in.MayDuration("GRACE_BUFFER", 30*time.Minute),
		GapTolerance: in.MayDuration("GAP_TOLERANCE", 10*time.Minute),
		RollupMinGap: in.MayDuration("ROLLUP_MIN_GAP", 30*time.Minute),

		AlertSubject:  in.MayString("ALERT_SUBJECT", "footfall.alerts"),
		ReportSubject: in.MayString("REPORT_SUBJECT", "footfall.reports.weekly"),

		BusMonURL:  in.MayString("BUSMON_URL", "http://127.0.0.1:8222"),
		TunnelURL:  in.MayString("TUNNEL_URL", "http://127.0.0.1:7500"),
		TunnelUser: in.MayString("TUNNEL_USER", ""),
		TunnelPass: in.MayString("TUNNEL_PASS", ""),

		SSHHost:     in.MayString("SSH_HOST", "127.0.0.1"),
		SSHUser:     in.MayString("SSH_USER", "root"),
		SSHPassword: in.MayString("SSH_PASSWORD", ""),
		PingTarget:  in.MayString("PING_TARGET", "8.8.8.8"),
		QueueDir:    in.MayString("QUEUE_DIR", "/var/spool/probe"),
		PoolSize:    in.MayInt("SSH_POOL", 4),
		PerAntenna:  in.MayDuration("SSH_TIMEOUT", 90*time.Second),

		TZ: tz,
	}
}
