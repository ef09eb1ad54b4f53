package archiver

import (
	"context"

	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/database"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "archiver",
		Usage: "Archive telemetry events past their retention",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the archive process once",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "output-directory",
						Usage: "directory to write the bundle to, overrides the configured directory",
					},
					&cli.BoolFlag{
						Name:  "cloud-upload",
						Usage: "upload the bundle to the configured cloud storage bucket",
					},
				},
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

					archiver := &Archiver{
						Store:           database.NewStore(instance),
						OutputDirectory: cfg.Archive.OutputDirectory,
						Retention:       cfg.Archive.Retention,
					}

					if c.String("output-directory") != "" {
						archiver.OutputDirectory = c.String("output-directory")
					}

					if c.Bool("cloud-upload") && cfg.Archive.BucketName != "" {
						archiver.Uploader = &BucketUploader{BucketName: cfg.Archive.BucketName}
					}

					_, err = archiver.Perform(c.Context)
					return err
				},
			},
		},
	}
}
