package analytics

import (
	"context"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/database"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	routeFlag := &cli.StringSliceFlag{
		Name:  "route",
		Usage: "route to process, defaults to the configured routes",
	}

	return &cli.Command{
		Name:  "analytics",
		Usage: "Delay, headway and route efficiency calculations",
		Subcommands: []*cli.Command{
			{
				Name:  "delays",
				Usage: "recalculate the hourly delay rows for routes",
				Flags: []cli.Flag{
					routeFlag,
					&cli.IntFlag{
						Name:  "hours",
						Usage: "number of trailing hours of events to use",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, analyzer, closeDatabase, err := connectAnalyzer(c)
					if err != nil {
						return err
					}
					defer closeDatabase()

					hours := cfg.Analytics.DelayHoursBack
					if c.Int("hours") > 0 {
						hours = c.Int("hours")
					}

					for _, route := range cliRoutes(c, cfg) {
						if err := analyzer.CalculateRouteDelays(c.Context, route, hours); err != nil {
							log.Error().Err(err).Str("route", route).Msg("Failed to calculate route delays")
						}
					}

					return nil
				},
			},
			{
				Name:  "history",
				Usage: "print the stored hourly delay rows for routes",
				Flags: []cli.Flag{
					routeFlag,
				},
				Action: func(c *cli.Context) error {
					cfg, analyzer, closeDatabase, err := connectAnalyzer(c)
					if err != nil {
						return err
					}
					defer closeDatabase()

					for _, route := range cliRoutes(c, cfg) {
						delays, err := analyzer.GetDelayHistory(c.Context, route, cfg.Analytics.DelayHoursBack)
						if err != nil {
							return err
						}

						pretty.Println(route, delays)
					}

					return nil
				},
			},
			{
				Name:  "headway",
				Usage: "print live headway statistics",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "route",
						Usage: "single route to analyse, defaults to every route",
					},
				},
				Action: func(c *cli.Context) error {
					_, analyzer, closeDatabase, err := connectAnalyzer(c)
					if err != nil {
						return err
					}
					defer closeDatabase()

					stats, err := analyzer.AnalyzeHeadways(c.Context, c.String("route"))
					if err != nil {
						return err
					}

					pretty.Println(stats)

					return nil
				},
			},
			{
				Name:  "metrics",
				Usage: "print the efficiency metrics of routes",
				Flags: []cli.Flag{
					routeFlag,
				},
				Action: func(c *cli.Context) error {
					cfg, analyzer, closeDatabase, err := connectAnalyzer(c)
					if err != nil {
						return err
					}
					defer closeDatabase()

					for _, route := range cliRoutes(c, cfg) {
						routeMetrics, err := analyzer.CalculateRouteMetrics(c.Context, route)
						if err != nil {
							return err
						}

						pretty.Println(routeMetrics)
					}

					return nil
				},
			},
		},
	}
}

func connectAnalyzer(c *cli.Context) (*config.Config, *Analyzer, func(), error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	instance, err := database.Connect(c.Context, cfg.MongoDB)
	if err != nil {
		return nil, nil, nil, err
	}

	closeDatabase := func() {
		if err := instance.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}

	return cfg, NewAnalyzer(database.NewStore(instance), cfg.Analytics), closeDatabase, nil
}

func cliRoutes(c *cli.Context, cfg *config.Config) []string {
	if routes := c.StringSlice("route"); len(routes) > 0 {
		return routes
	}

	return cfg.Upstream.Routes
}
