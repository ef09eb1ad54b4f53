package api

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/alerts"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/api/routes"
	"github.com/travigo/transit-telemetry/pkg/cachedresults"
	"github.com/travigo/transit-telemetry/pkg/collector"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/database"
	"github.com/travigo/transit-telemetry/pkg/events"
	"github.com/travigo/transit-telemetry/pkg/metrics"
	"github.com/travigo/transit-telemetry/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Provides the telemetry read API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server, overrides the configured address",
					},
					&cli.BoolFlag{
						Name:  "collector",
						Value: true,
						Usage: "run the collector inside the api process",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					ctx := c.Context

					instance, err := database.Connect(ctx, cfg.MongoDB)
					if err != nil {
						return err
					}
					defer instance.Disconnect(context.Background())

					store := database.NewStore(instance)
					m := metrics.New()

					backend := &routes.Backend{
						Store:    store,
						Analyzer: analytics.NewAnalyzer(store, cfg.Analytics),
						Detector: alerts.NewDetector(store, cfg.Analytics),
						Config:   cfg,
					}

					var queue rmq.Connection
					var publisher collector.Publisher

					if cfg.Redis.Address != "" {
						connection, err := redis_client.Connect(ctx, cfg.Redis)
						if err != nil {
							return err
						}
						defer connection.Close()

						queue = connection.Queue
						backend.Cache = cachedresults.New(connection.Client, cfg.Cache.TTL)

						eventsPublisher, err := events.NewPublisher(connection.Queue, m)
						if err != nil {
							return err
						}
						publisher = eventsPublisher
					}

					var telemetryCollector *collector.Collector
					if c.Bool("collector") {
						telemetryCollector = collector.NewFromConfig(cfg, store, m)
						telemetryCollector.Publisher = publisher

						if err := telemetryCollector.Start(ctx); err != nil {
							return err
						}
					}

					listen := cfg.API.Listen
					if c.String("listen") != "" {
						listen = c.String("listen")
					}

					webApp := NewApp(backend, m, queue)

					go func() {
						log.Info().Str("listen", listen).Msg("Starting api server")

						if err := webApp.Listen(listen); err != nil {
							log.Fatal().Err(err).Msg("Api server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					if telemetryCollector != nil {
						telemetryCollector.Stop()
					}

					return webApp.ShutdownWithTimeout(10 * time.Second)
				},
			},
		},
	}
}
