// Package module wires the tally service and exposes its ports
package module

import (
	"footfall/internal/core/decoy"
	"footfall/internal/modkit"
	"footfall/internal/services/tally/domain"
	"footfall/internal/services/tally/service"
)

// Ports exposed by the tally module
type Ports struct {
	Tallier domain.TallierPort
}

// Module defines the tally module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the tally module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)

	if overrides.DecoyLag != 0 {
		opts.DecoyLag = overrides.DecoyLag
	}
	if overrides.DecoySpan != 0 {
		opts.DecoySpan = overrides.DecoySpan
	}
	if overrides.CorrWindow != 0 {
		opts.CorrWindow = overrides.CorrWindow
	}
	if overrides.TZ != nil {
		opts.TZ = overrides.TZ
	}

	svc := service.New(deps, service.Config{
		Decoy:      decoy.Params{Lag: opts.DecoyLag, Span: opts.DecoySpan},
		CorrWindow: opts.CorrWindow,
		TZ:         opts.TZ,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Tallier: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "tally" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
