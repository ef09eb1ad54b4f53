package indexer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/consumer"
	"github.com/travigo/transit-telemetry/pkg/elastic_client"
	"github.com/travigo/transit-telemetry/pkg/events"
	"github.com/travigo/transit-telemetry/pkg/metrics"
	"github.com/travigo/transit-telemetry/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "indexer",
		Usage: "Indexes queued telemetry events into Elasticsearch",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the telemetry event consumers",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "consumers",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Value: 200,
					},
					&cli.StringFlag{
						Name:  "stats-listen",
						Usage: "address to serve queue stats on, empty to disable",
						Value: ":3333",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					connection, err := redis_client.Connect(c.Context, cfg.Redis)
					if err != nil {
						return err
					}

					elastic, err := elastic_client.Connect(cfg.Elasticsearch, true)
					if err != nil {
						return err
					}

					redisConsumer := &consumer.RedisConsumer{
						Connection:      connection.Queue,
						QueueName:       events.TelemetryEventsQueue,
						NumberConsumers: c.Int("consumers"),
						BatchSize:       c.Int("batch-size"),
						Timeout:         2 * time.Second,
						Consumer: &BatchConsumer{
							Indexer: elastic,
							Metrics: metrics.New(),
						},
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					if listen := c.String("stats-listen"); listen != "" {
						go startStatsServer(listen, consumer.NewStatsHandler(connection.Queue))
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-connection.Queue.StopAllConsuming() // wait for all Consume() calls to finish

					flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()

					return elastic.WaitUntilQueueEmpty(flushCtx)
				},
			},
			{
				Name:  "cleaner",
				Usage: "run the queue cleaner for the telemetry events queue",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Value: time.Minute,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					connection, err := redis_client.Connect(c.Context, cfg.Redis)
					if err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()

					go events.StartCleaner(ctx, connection.Queue, c.Duration("interval"))

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()

					return connection.Close()
				},
			},
		},
	}
}

func startStatsServer(listen string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/overview", handler)

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("listen", listen).Msg("Starting queue stats server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Queue stats server stopped")
	}
}
