package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"footfall/internal/core/version"
	"footfall/internal/modkit"
	"footfall/internal/modkit/module"
	"footfall/internal/platform/bus"
	"footfall/internal/platform/config"
	"footfall/internal/platform/logger"
	"footfall/internal/platform/store"

	ingestmod "footfall/internal/services/ingest/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	busCfg := root.Prefix("SERVICE_BUS_")

	l := logger.Get()
	bi := version.Info()
	l.Info().Str("version", bi.Version).Str("commit", bi.Commit).Msg("starting footfall-ingest")
	st, err := store.Open(context.Background(), store.Config{
		AppName: "footfall-ingest",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
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

	b, err := bus.Connect(bus.Config{
		URL:  busCfg.MustString("URL"),
		Name: busCfg.MayString("NAME", "footfall-ingest"),
	}, *l)
	if err != nil {
		l.Panic().Err(err).Msg("bus.Connect failed")
	}
	defer b.Close()

	fSubject := flag.String("subject", "", "subscription subject override (default from INGEST_SUBJECT)")
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Bus: b,
		Log: *l,
	}

	im := ingestmod.New(deps, ingestmod.Options{Subject: *fSubject})
	module.Register(im.Name(), im.Ports())
	ports := module.MustPortsOf[ingestmod.Ports](im)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info().Msg("ingest worker starting")
	if err := ports.Runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("ingest worker failed")
	}
	l.Info().Msg("ingest worker stopped")
}
