package main

import (
	"context"
	"flag"
	"time"

	"footfall/internal/core/version"
	"footfall/internal/modkit"
	"footfall/internal/modkit/module"
	"footfall/internal/platform/bus"
	"footfall/internal/platform/config"
	"footfall/internal/platform/logger"
	"footfall/internal/platform/store"

	nightwatchmod "footfall/internal/services/nightwatch/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	busCfg := root.Prefix("SERVICE_BUS_")

	l := logger.Get()
	bi := version.Info()
	l.Info().Str("version", bi.Version).Str("commit", bi.Commit).Msg("starting footfall-nightwatch")
	st, err := store.Open(context.Background(), store.Config{
		AppName: "footfall-nightwatch",
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

	// The bus is optional here: without it alerts are persisted but no
	// payload reaches the external notifier
	var b *bus.Bus
	if url := busCfg.MayString("URL", ""); url != "" {
		b, err = bus.Connect(bus.Config{
			URL:  url,
			Name: busCfg.MayString("NAME", "footfall-nightwatch"),
		}, *l)
		if err != nil {
			l.Panic().Err(err).Msg("bus.Connect failed")
		}
		defer b.Close()
	}

	var (
		fMode = flag.String("mode", "health", "run mode: health | gaps | weekly")
		fDate = flag.String("date", "", "target date for gap detection YYYY-MM-DD (default: today)")
	)
	flag.Parse()

	date := time.Now()
	if *fDate != "" {
		t, err := time.Parse("2006-01-02", *fDate)
		if err != nil {
			l.Panic().Err(err).Msg("bad -date")
		}
		date = t
	}

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Bus: b,
		Log: *l,
	}

	nm := nightwatchmod.New(deps, nightwatchmod.Options{})
	module.Register(nm.Name(), nm.Ports())
	ports := module.MustPortsOf[nightwatchmod.Ports](nm)

	ctx := context.Background()
	switch *fMode {
	case "health":
		if err := ports.Watcher.CheckHealth(ctx); err != nil {
			l.Fatal().Err(err).Msg("health sweep failed")
		}
	case "gaps":
		if err := ports.Watcher.DetectGaps(ctx, date); err != nil {
			l.Fatal().Err(err).Msg("gap detection failed")
		}
	case "weekly":
		if err := ports.Watcher.WeeklyReport(ctx); err != nil {
			l.Fatal().Err(err).Msg("weekly report failed")
		}
	default:
		l.Panic().Str("mode", *fMode).Msg("unknown mode")
	}
}
