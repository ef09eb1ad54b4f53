package export

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/database"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "route",
			Usage: "route to export, defaults to the configured routes",
		},
		&cli.StringFlag{
			Name:  "format",
			Value: FormatCSV,
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "file to write to, defaults to stdout",
		},
	}

	return &cli.Command{
		Name:  "export",
		Usage: "Export stored analytics",
		Subcommands: []*cli.Command{
			{
				Name:  "delays",
				Usage: "export the hourly delay rows",
				Flags: flags,
				Action: func(c *cli.Context) error {
					return runExport(c, func(ctx context.Context, analyzer *analytics.Analyzer, routes []string, writer io.Writer) error {
						var delays []*ctdf.RouteDelay
						for _, route := range routes {
							routeDelays, err := analyzer.GetDelayHistory(ctx, route, analyzer.Config.DelayHoursBack)
							if err != nil {
								return err
							}
							delays = append(delays, routeDelays...)
						}

						return WriteRouteDelays(writer, c.String("format"), delays)
					})
				},
			},
			{
				Name:  "metrics",
				Usage: "export the route efficiency metrics",
				Flags: flags,
				Action: func(c *cli.Context) error {
					return runExport(c, func(ctx context.Context, analyzer *analytics.Analyzer, routes []string, writer io.Writer) error {
						var routeMetrics []*analytics.RouteMetrics
						for _, route := range routes {
							metrics, err := analyzer.CalculateRouteMetrics(ctx, route)
							if err != nil {
								return err
							}
							routeMetrics = append(routeMetrics, metrics)
						}

						return WriteRouteMetrics(writer, c.String("format"), routeMetrics)
					})
				},
			},
		},
	}
}

type exportFunc func(ctx context.Context, analyzer *analytics.Analyzer, routes []string, writer io.Writer) error

func runExport(c *cli.Context, export exportFunc) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	instance, err := database.Connect(c.Context, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer instance.Disconnect(context.Background())

	routes := cfg.Upstream.Routes
	if len(c.StringSlice("route")) > 0 {
		routes = c.StringSlice("route")
	}

	var writer io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()

		writer = file
	}

	analyzer := analytics.NewAnalyzer(database.NewStore(instance), cfg.Analytics)
	if err := export(c.Context, analyzer, routes, writer); err != nil {
		return err
	}

	if c.String("output") != "" {
		log.Info().Strs("routes", routes).Str("output", c.String("output")).Msg("Export complete")
	}

	return nil
}
