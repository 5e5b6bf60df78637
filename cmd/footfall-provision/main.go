package main

import (
	"context"
	"flag"
	"time"

	"footfall/internal/core/version"
	"footfall/internal/modkit"
	"footfall/internal/modkit/module"
	"footfall/internal/platform/config"
	"footfall/internal/platform/logger"
	"footfall/internal/platform/store"

	provisionmod "footfall/internal/services/provision/module"
	provisionsvc "footfall/internal/services/provision/service"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()
	bi := version.Info()
	l.Info().Str("version", bi.Version).Str("commit", bi.Commit).Msg("starting footfall-provision")
	st, err := store.Open(context.Background(), store.Config{
		AppName: "footfall-provision",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fAntenna = flag.String("antenna", "", "provision a single antenna id instead of sweeping all")
		fYear    = flag.Int("year", 0, "target year (default: current year, next year in late December)")
	)
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	pm := provisionmod.New(deps, provisionmod.Options{})
	module.Register(pm.Name(), pm.Ports())
	ports := module.MustPortsOf[provisionmod.Ports](pm)

	year := *fYear
	if year == 0 {
		year = provisionsvc.TargetYear(time.Now())
	}

	ctx := context.Background()
	if *fAntenna != "" {
		if err := ports.Ensurer.EnsureAntenna(ctx, *fAntenna, year); err != nil {
			l.Fatal().Str("antenna", *fAntenna).Err(err).Msg("antenna provisioning failed")
		}
		l.Info().Str("antenna", *fAntenna).Int("year", year).Msg("antenna provisioned")
		return
	}

	ok, err := ports.Ensurer.EnsureAll(ctx, year)
	if err != nil {
		l.Fatal().Int("provisioned", ok).Err(err).Msg("provisioning sweep failed")
	}
	l.Info().Int("provisioned", ok).Int("year", year).Msg("provisioning sweep finished")
}
