package collector

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/database"
	"github.com/travigo/transit-telemetry/pkg/events"
	"github.com/travigo/transit-telemetry/pkg/metrics"
	"github.com/travigo/transit-telemetry/pkg/redis_client"
	"github.com/travigo/transit-telemetry/pkg/upstream"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "collector",
		Usage: "Polls the upstream vehicles feed and records vehicle state",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the collector on its configured interval",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "metrics-listen",
						Usage: "address to serve prometheus metrics on, empty to disable",
						Value: ":9090",
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

					m := metrics.New()
					collector := NewFromConfig(cfg, database.NewStore(instance), m)

					if cfg.Redis.Address != "" {
						connection, err := redis_client.Connect(ctx, cfg.Redis)
						if err != nil {
							return err
						}
						defer connection.Close()

						publisher, err := events.NewPublisher(connection.Queue, m)
						if err != nil {
							return err
						}
						collector.Publisher = publisher
					}

					if listen := c.String("metrics-listen"); listen != "" {
						go startMetricsServer(listen, m)
					}

					if err := collector.Start(ctx); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					collector.Stop()

					return nil
				},
			},
			{
				Name:  "once",
				Usage: "run a single collection cycle and print the result",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					instance, err := database.Connect(c.Context, cfg.MongoDB)
					if err != nil {
						return err
					}
					defer instance.Disconnect(context.Background())

					collector := NewFromConfig(cfg, database.NewStore(instance), nil)

					result, err := collector.RunOnce(c.Context)
					if result != nil {
						pretty.Println(result)
					}

					return err
				},
			},
			{
				Name:  "fetch",
				Usage: "fetch the current vehicles from the upstream without storing them",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "route",
						Usage: "route to fetch, defaults to the configured routes",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					routes := cfg.Upstream.Routes
					if len(c.StringSlice("route")) > 0 {
						routes = c.StringSlice("route")
					}

					snapshots, err := upstream.NewClient(cfg.Upstream, nil).FetchVehicles(c.Context, routes)
					if err != nil {
						return err
					}

					pretty.Println(snapshots)
					log.Info().Int("vehicles", len(snapshots)).Msg("Fetched vehicles")

					return nil
				},
			},
		},
	}
}

func startMetricsServer(listen string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("listen", listen).Msg("Starting metrics server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}
