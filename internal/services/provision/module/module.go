// Package module wires the provision service and exposes its ports
package module

import (
	"footfall/internal/modkit"
	"footfall/internal/services/provision/domain"
	"footfall/internal/services/provision/service"
)

// Ports exposed by the provision module
type Ports struct {
	Ensurer domain.EnsurerPort
}

// Module defines the provision module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the provision module with its ports
func New(deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg)

	if len(overrides.Roles) > 0 {
		opts.Roles = overrides.Roles
	}
	if overrides.TZ != nil {
		opts.TZ = overrides.TZ
	}

	svc := service.New(deps, service.Config{
		Roles: opts.Roles,
		TZ:    opts.TZ,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Ensurer: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "provision" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
