package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arhyth/ledgerx"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfg, err := ledgerx.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading config file")
	}
	lvl, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.Server.LogLevel).Msg("error parsing log level")
	}
	zerolog.SetGlobalLevel(lvl)

	ids, err := cfg.IDGenerator()
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting ID generator")
	}
	currencies, err := cfg.CurrencyService(&logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting currency service")
	}

	store := ledgerx.NewMemStore(ids, &logger)
	core := ledgerx.NewService(store, currencies, &logger)
	if _, err = ledgerx.SeedAccounts(core, cfg.Seed); err != nil {
		logger.Fatal().Err(err).Msg("error creating seed accounts")
	}

	svc := ledgerx.Chain(core,
		ledgerx.NewLimitMiddleware(cfg.ServiceLimits()),
		ledgerx.NewValidationMiddleware(store),
	)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: ledgerx.NewHTTPHandler(svc, &logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err = g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}
