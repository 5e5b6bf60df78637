// Package service implements the partition manager
package service

import (
	"context"
	"time"

	"footfall/internal/modkit"
	"footfall/internal/services/provision/repo"
)

// Config carries runtime knobs for provisioning
type Config struct {
	// Roles receive SELECT on all tables after a sweep
	Roles []string
	// TZ anchors partition boundaries; leaf ranges are whole local months
	TZ *time.Location
}

// Svc implements domain.EnsurerPort
type Svc struct {
	Repo repo.Repo
	deps modkit.Deps
	cfg  Config
}

// New constructs a provision service
func New(deps modkit.Deps, cfg Config) *Svc {
	if deps.PG == nil {
		panic("provision.Service requires a non nil TxRunner")
	}
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	return &Svc{
		Repo: repo.NewPG().Bind(deps.PG),
		deps: deps,
		cfg:  cfg,
	}
}

// EnsureAntenna provisions the full partition chain for one antenna and year
func (s *Svc) EnsureAntenna(ctx context.Context, antenna string, year int) error {
	if err := s.Repo.CreateBase(ctx); err != nil {
		return err
	}
	if err := s.Repo.CreateOverflow(ctx); err != nil {
		return err
	}
	if err := s.Repo.CreateAntennaPartition(ctx, antenna); err != nil {
		return err
	}
	if err := s.Repo.CreateYearPartition(ctx, antenna, year, s.cfg.TZ); err != nil {
		return err
	}
	for m := 1; m <= 12; m++ {
		if err := s.Repo.CreateMonthPartition(ctx, antenna, year, m, s.cfg.TZ); err != nil {
			return err
		}
	}
	return nil
}

// EnsureAll provisions every active antenna, isolating per-antenna failures,
// then applies read grants once. Returns how many antennas provisioned cleanly
func (s *Svc) EnsureAll(ctx context.Context, year int) (int, error) {
	antennas, err := s.Repo.ListAntennas(ctx)
	if err != nil {
		return 0, err
	}

	ok := 0
	for _, a := range antennas {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		if err := s.EnsureAntenna(ctx, a, year); err != nil {
			s.deps.Log.Warn().Str("antenna", a).Int("year", year).Err(err).
				Msg("antenna provisioning failed, continuing sweep")
			continue
		}
		ok++
	}

	if len(s.cfg.Roles) > 0 {
		if err := s.Repo.GrantReadAll(ctx, s.cfg.Roles); err != nil {
			return ok, err
		}
	}
	return ok, nil
}

// TargetYear picks the year to provision for. In the last days of December
// the coming year is provisioned so January ingestion never finds a gap
func TargetYear(now time.Time) int {
	if now.Month() == time.December && now.Day() > 28 {
		return now.Year() + 1
	}
	return now.Year()
}
