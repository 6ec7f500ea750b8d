// crm — инструмент командной строки для планировщика задач CRM.
//
// Использование:
//
//	crm [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	tasks    Просмотр, создание и сброс задач
//	trigger  Немедленный запуск задач по триггеру
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduvision/crm/internal/cli"
	"github.com/eduvision/crm/internal/mq"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var amqpURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "crm",
		Short:         "CRM scheduler CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("CRM_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&amqpURL, "rabbitmq-url", envOr("RABBITMQ_URL", mq.DefaultURL()), "RabbitMQ URL for --via-mq")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	publisherFn := func() (cli.TriggerPublisher, func(), error) {
		return dialPublisher(amqpURL)
	}

	rootCmd.AddCommand(
		cli.NewTasksCmd(clientFn, outputFn),
		cli.NewTriggerCmd(clientFn, outputFn, publisherFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// mqTriggerPublisher публикует trigger.fire с таймаутом.
type mqTriggerPublisher struct {
	pub *mq.Publisher
}

func (p mqTriggerPublisher) PublishTriggerFire(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.pub.PublishTriggerFire(ctx, name)
}

func dialPublisher(url string) (cli.TriggerPublisher, func(), error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	conn, err := mq.NewConnection(url, "crm-cli", logger)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: %w", err)
	}
	closeFn := func() { _ = conn.Close() }

	return mqTriggerPublisher{pub: mq.NewPublisher(conn, logger)}, closeFn, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
