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

	tallymod "footfall/internal/services/tally/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()
	bi := version.Info()
	l.Info().Str("version", bi.Version).Str("commit", bi.Commit).Msg("starting footfall-tally")
	st, err := store.Open(context.Background(), store.Config{
		AppName: "footfall-tally",
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
		fDate = flag.String("date", "", "target date YYYY-MM-DD (default: today)")
		fSite = flag.Int64("site", 0, "restrict the run to one site id")
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
		Log: *l,
	}

	tm := tallymod.New(deps, tallymod.Options{})
	module.Register(tm.Name(), tm.Ports())
	ports := module.MustPortsOf[tallymod.Ports](tm)

	if err := ports.Tallier.RunDay(context.Background(), date, *fSite); err != nil {
		l.Fatal().Err(err).Msg("tally run failed")
	}
}
