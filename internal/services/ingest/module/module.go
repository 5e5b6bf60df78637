// Package module wires the ingest service and exposes its ports
package module

import (
	"footfall/internal/modkit"
	"footfall/internal/services/ingest/domain"
	"footfall/internal/services/ingest/service"
)

// Ports exposed by the ingest module
type Ports struct {
	Runner domain.RunnerPort
}

// Module defines the ingest module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the ingest module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)

	if overrides.Subject != "" {
		opts.Subject = overrides.Subject
	}
	if overrides.RetryBackoff != 0 {
		opts.RetryBackoff = overrides.RetryBackoff
	}
	if overrides.TZ != nil {
		opts.TZ = overrides.TZ
	}

	svc := service.New(deps, service.Config{
		Subject:      opts.Subject,
		RetryBackoff: opts.RetryBackoff,
		TZ:           opts.TZ,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "ingest" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
