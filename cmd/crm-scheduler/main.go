// crm-scheduler — планировщик отложенных задач CRM.
//
// Опрашивает scheduled_tasks, выполняет наступившие задачи через реестр
// handler'ов и отдаёт HTTP API для создания задач и запуска триггеров.
//
// Использование:
//
//	crm-scheduler [--config crm-scheduler.yaml] [--store-driver postgres|sqlite|memory] [--api-port 8080]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduvision/crm/internal/api"
	"github.com/eduvision/crm/internal/config"
	"github.com/eduvision/crm/internal/mq"
	"github.com/eduvision/crm/internal/scheduler"
	"github.com/eduvision/crm/internal/telemetry"
	"github.com/eduvision/crm/internal/worker"
)

const serviceName = "crm-scheduler"

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "CRM scheduled task runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./crm-scheduler.yaml)")
	rootCmd.Flags().String("store-driver", "", "task store: postgres | sqlite | memory")
	rootCmd.Flags().String("api-port", "", "HTTP API port")
	rootCmd.Flags().String("log-level", "", "log level: debug | info | warn | error")

	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}
		for key, flag := range map[string]string{
			"store_driver": "store-driver",
			"api_port":     "api-port",
			"log_level":    "log-level",
		} {
			if cmd.Flags().Changed(flag) {
				config.BindFlag(v, key, cmd.Flags(), flag)
			}
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return run(ctx, cfg)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	logger.Info("starting crm-scheduler",
		"version", version,
		"store_driver", cfg.StoreDriver,
		"poll_interval", cfg.PollInterval,
		"handler_workers", cfg.HandlerWorkers,
	)

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	registry := worker.NewRegistry(
		worker.NewCleanupReserveHandler(st.reservations, logger),
		worker.NewUpdateCurrencyHandler(worker.NewCurrencyClient(cfg.CurrencyURL, cfg.CurrencyTimeout), logger),
	)
	pool := worker.NewPool(cfg.HandlerWorkers)
	logger.Info("handlers registered", "task_types", registry.Types(), "workers", pool.Size())

	schedCfg := scheduler.Config{
		Store:    st.tasks,
		Registry: registry,
		Pool:     pool,
		Logger:   logger,
	}

	// RabbitMQ опционален: без него события не публикуются, а триггеры
	// запускаются только через HTTP.
	var conn *mq.Connection
	if cfg.RabbitMQURL != "" {
		conn, err = mq.NewConnection(cfg.RabbitMQURL, serviceName, logger)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			return fmt.Errorf("rabbitmq topology: %w", err)
		}
		logger.Debug("rabbitmq topology declared", "topology", mq.TopologyInfo())

		schedCfg.Publisher = mq.NewPublisher(conn, logger)
	}

	sched := scheduler.New(schedCfg)

	if conn != nil {
		consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueTasksTrigger),
			Handler: mq.TriggerHandler(sched, logger),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("trigger consumer stopped", "error", err)
			}
		}()
		defer consumer.Stop()
	}

	poller := scheduler.NewPoller(sched, scheduler.PollerConfig{
		Interval:   cfg.PollInterval,
		RunOnStart: cfg.PollOnStart,
		Logger:     logger,
	})
	startScheduling(ctx, sched, poller, cfg.StartupTrigger, logger)

	mux := http.NewServeMux()
	api.NewHandler(api.Config{Tasks: sched, Logger: logger}).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		logger.Error("server error", "error", err)
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	// Ждём текущие тики: handler'ы доделывают работу и освобождают задачи.
	select {
	case <-poller.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("ticks still running at shutdown")
	}

	logger.Info("stopped")
	return err
}
