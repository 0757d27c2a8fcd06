package main

import (
	"flag"
	"os"

	"github.com/arhyth/ledgerx"
	"github.com/rs/zerolog"
)

// seeder dry-runs a config file: it builds the currency service and creates
// the seed accounts in a throwaway store, then prints what the server would
// start with.
func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfg, err := ledgerx.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading config file")
	}

	ids, err := cfg.IDGenerator()
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting ID generator")
	}
	currencies, err := cfg.CurrencyService(&logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting currency service")
	}

	quiet := logger.Level(zerolog.WarnLevel)
	svc := ledgerx.NewService(ledgerx.NewMemStore(ids, &quiet), currencies, &quiet)
	accts, err := ledgerx.SeedAccounts(svc, cfg.Seed)
	if err != nil {
		logger.Fatal().Err(err).Msg("error preparing seed accounts")
	}
	if err = ledgerx.WriteSeedSummary(os.Stdout, accts); err != nil {
		logger.Fatal().Err(err).Msg("error writing summary")
	}
}
