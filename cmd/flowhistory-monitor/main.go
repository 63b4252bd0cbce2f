// Package main provides the flowhistory monitor, a daemon that evaluates
// alert rules on a schedule and ingests executions pushed through Redis.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/planstudio/flowhistory/pkg/cmd"
	"github.com/planstudio/flowhistory/pkg/eventbus"
	"github.com/planstudio/flowhistory/pkg/log"
	"github.com/planstudio/flowhistory/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "flowhistory-monitor",
		Usage:                 "Evaluate alert rules over recorded flow executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "monitor-id",
				Aliases: []string{"id"},
				Usage:   "Custom monitor ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("MONITOR_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Execution store URL (memory:// or file://path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "rules-file",
				Usage:    "Path to the YAML alert rules file",
				Required: true,
				Sources:  cli.EnvVars("RULES_FILE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for evaluation cycles",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "queue-addr",
				Usage:   "Redis address for the ingestion queue (empty disables ingestion)",
				Value:   "",
				Sources: cli.EnvVars("QUEUE_ADDR"),
			},
			&cli.StringFlag{
				Name:    "queue-password",
				Usage:   "Redis password for the ingestion queue",
				Value:   "",
				Sources: cli.EnvVars("QUEUE_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Redis list the ingestion queue reads from",
				Value:   "",
				Sources: cli.EnvVars("QUEUE_NAME"),
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

			monitorID := command.String("monitor-id")
			if monitorID == "" {
				monitorID = fmt.Sprintf("monitor-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("flowhistory-monitor").With("monitor_id", monitorID)

			logger.InfoContext(ctx, "Initializing Flowhistory Monitor")

			executionStore := cmd.NewStore(command.String("database-url"))
			defer func() {
				if err := executionStore.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close execution store", "error", err)
				}
			}()

			tracer, err := otelhelper.NewTracer(ctx, "flowhistory-monitor")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger, eventbus.WithTracer(tracer))
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			monitor := NewMonitorService(
				monitorID,
				executionStore,
				eventBus,
				logger,
				Config{
					RulesFile:     command.String("rules-file"),
					Schedule:      command.String("schedule"),
					QueueAddr:     command.String("queue-addr"),
					QueuePassword: command.String("queue-password"),
					QueueName:     command.String("queue-name"),
				},
			)

			return monitor.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
