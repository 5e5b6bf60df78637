// Package service implements the ingestion worker
package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"footfall/internal/modkit"
	"footfall/internal/services/ingest/repo"
)

// Config carries runtime knobs for the ingestion worker
type Config struct {
	// Subject is the wildcard subscription, one concrete subject per antenna
	Subject string
	// RetryBackoff is the fixed wait between attempts on transient storage errors
	RetryBackoff time.Duration
	// TZ is the deployment timezone all antenna clocks report in
	TZ *time.Location
}

// Svc implements domain.RunnerPort
type Svc struct {
	Repo     repo.Repo
	deps     modkit.Deps
	cfg      Config
	validate *validator.Validate
}

// New constructs an ingestion service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("ingest.Service requires a non nil TxRunner")
	}
	if deps.Bus == nil {
		panic("ingest.Service requires a bus connection")
	}
	if cfg.Subject == "" {
		cfg.Subject = "probe.>"
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	return &Svc{
		Repo:     repo.NewPG().Bind(deps.PG),
		deps:     deps,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// Run subscribes and processes messages until ctx is cancelled. The bus layer
// reconnects forever underneath, so Run only returns on cancellation
func (s *Svc) Run(ctx context.Context) error {
	return s.deps.Bus.Subscribe(ctx, s.cfg.Subject, func(ctx context.Context, subject string, data []byte) {
		s.Handle(ctx, subject, data)
	})
}
