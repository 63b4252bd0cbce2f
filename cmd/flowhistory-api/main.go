package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/planstudio/flowhistory/pkg/cmd"
	"github.com/planstudio/flowhistory/pkg/log"
	"github.com/planstudio/flowhistory/pkg/seed"
	"github.com/planstudio/flowhistory/pkg/services"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowhistory-api",
		Usage:                 "Query and record automation flow execution history",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Execution store URL (memory:// or file://path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.IntFlag{
				Name:    "seed",
				Usage:   "Populate the store with deterministic sample data using this seed (0 disables)",
				Value:   0,
				Sources: cli.EnvVars("SEED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowhistory API")

			executionStore := cmd.NewStore(command.String("database-url"))

			defer func() {
				err := executionStore.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close execution store", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if seedValue := command.Int("seed"); seedValue != 0 {
				generator := seed.NewGenerator(int64(seedValue))

				count, err := generator.Populate(ctx, executionStore)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to seed execution store", "error", err)
				} else {
					logger.InfoContext(ctx, "Seeded execution store", "records", count)
				}
			}

			historyService := services.NewHistory(executionStore, logger, services.WithEventBus(eventBus))

			api := NewAPI(logger, historyService)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
