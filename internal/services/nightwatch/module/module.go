// Package module wires the nightwatch service and exposes its ports
package module

import (
	"footfall/internal/modkit"
	"footfall/internal/services/nightwatch/domain"
	"footfall/internal/services/nightwatch/service"
)

// Ports exposed by the nightwatch module
type Ports struct {
	Watcher domain.WatcherPort
}

// Module defines the nightwatch module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the nightwatch module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)

	if overrides.TZ != nil {
		opts.TZ = overrides.TZ
	}
	if overrides.BusMonURL != "" {
		opts.BusMonURL = overrides.BusMonURL
	}
	if overrides.TunnelURL != "" {
		opts.TunnelURL = overrides.TunnelURL
	}
	if overrides.GapTolerance != 0 {
		opts.GapTolerance = overrides.GapTolerance
	}

	svc := service.New(deps, service.Config{
		Thresholds: service.Thresholds{
			Delivery:   opts.DeliveryThreshold,
			Reception:  opts.ReceptionThreshold,
			Clock:      opts.ClockThreshold,
			MinSignal:  opts.MinSignal,
			MaxLossPct: opts.MaxLossPct,
		},
		GraceBuffer:   opts.GraceBuffer,
		GapTolerance:  opts.GapTolerance,
		RollupMinGap:  opts.RollupMinGap,
		AlertSubject:  opts.AlertSubject,
		ReportSubject: opts.ReportSubject,
		BusMonURL:     opts.BusMonURL,
		TunnelURL:     opts.TunnelURL,
		TunnelUser:    opts.TunnelUser,
		TunnelPass:    opts.TunnelPass,
		Diag: service.DiagConfig{
			Host:       opts.SSHHost,
			User:       opts.SSHUser,
			Password:   opts.SSHPassword,
			PingTarget: opts.PingTarget,
			QueueDir:   opts.QueueDir,
			PoolSize:   opts.PoolSize,
			PerAntenna: opts.PerAntenna,
		},
		TZ: opts.TZ,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Watcher: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "nightwatch" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
