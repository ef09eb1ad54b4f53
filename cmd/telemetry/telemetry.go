package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/api"
	"github.com/travigo/transit-telemetry/pkg/archiver"
	"github.com/travigo/transit-telemetry/pkg/collector"
	"github.com/travigo/transit-telemetry/pkg/export"
	"github.com/travigo/transit-telemetry/pkg/indexer"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("TELEMETRY_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TELEMETRY_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "telemetry",
		Description: "Transit vehicle telemetry collection, analytics and read API",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"TELEMETRY_CONFIG"},
			},
		},

		Commands: []*cli.Command{
			api.RegisterCLI(),
			collector.RegisterCLI(),
			analytics.RegisterCLI(),
			indexer.RegisterCLI(),
			archiver.RegisterCLI(),
			export.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
