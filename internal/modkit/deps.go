// Package modkit provides module wiring and core deps
package modkit

import (
	"footfall/internal/modkit/repokit"
	"footfall/internal/platform/bus"
	"footfall/internal/platform/config"
	"footfall/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	Bus *bus.Bus
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional seams
func (d Deps) ZeroOK() bool { return true }
