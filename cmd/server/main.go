package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Oniqq60/task_tracker/internal/cfg"
	"github.com/Oniqq60/task_tracker/internal/completion"
	"github.com/Oniqq60/task_tracker/internal/db"
	"github.com/Oniqq60/task_tracker/internal/middleware"
	"github.com/Oniqq60/task_tracker/internal/routers"
	"github.com/Oniqq60/task_tracker/internal/task"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var logger = log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lmicroseconds)

var rootCmd = &cobra.Command{
	Use:           "tracker",
	Short:         "Task tracker with forecast-based anomaly detection",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := cfg.Load()
		if err != nil {
			return err
		}
		gdb, err := db.Open(conf.DSN())
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		if err := db.Migrate(gdb); err != nil {
			return err
		}
		logger.Println("migrations applied")
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check-anomalies",
	Short: "Check every incomplete task for anomalies once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conf, err := cfg.Load()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, conf, logger)
		if err != nil {
			return err
		}
		defer a.close()

		found, err := a.anomalies.CheckAllActiveTasks(ctx, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "anomalies found: %d\n", len(found))
		for _, an := range found {
			fmt.Fprintf(cmd.OutOrStdout(), "  task=%d user=%s deviation=%.2f (active %.2fh / estimated %.2fh)\n",
				an.TaskID, an.Username, an.Deviation, an.ActiveHours, an.EstimatedHours)
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume task completion events from Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conf, err := cfg.Load()
		if err != nil {
			return err
		}
		if !conf.KafkaEnabled() {
			return errors.New("KAFKA_BROKERS must be set")
		}
		a, err := newApp(ctx, conf, logger)
		if err != nil {
			return err
		}
		defer a.close()

		consumer := completion.NewKafkaConsumer(conf.KafkaBrokers, conf.KafkaTopic, conf.KafkaGroupID,
			a.engine, conf.CompletionCheckTimeout, logger)
		defer consumer.Close()

		return consumer.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("tracker stopped: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := cfg.Load()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := db.Migrate(a.db); err != nil {
		return err
	}

	authSvc, err := a.authService()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var queue task.CompletionQueue
	if conf.KafkaEnabled() {
		publisher := completion.NewKafkaPublisher(conf.KafkaBrokers, conf.KafkaTopic, logger)
		defer publisher.Close()
		queue = publisher

		consumer := completion.NewKafkaConsumer(conf.KafkaBrokers, conf.KafkaTopic, conf.KafkaGroupID,
			a.engine, conf.CompletionCheckTimeout, logger)
		defer consumer.Close()
		g.Go(func() error { return consumer.Start(gctx) })
		logger.Printf("completion checks via kafka topic=%s", conf.KafkaTopic)
	} else {
		pool := completion.NewWorkerPool(a.engine, conf.CompletionQueueSize, conf.CompletionWorkers,
			conf.CompletionCheckTimeout, logger)
		pool.Start(gctx)
		defer pool.Close()
		queue = pool
	}

	tasks := task.NewTaskService(a.taskRepo, queue, logger)
	router, err := routers.New(routers.Dependencies{
		Tasks:        tasks,
		Anomalies:    a.anomalies,
		Auth:         authSvc,
		LoginLimiter: middleware.NewRateLimiter(conf.RateLimitRequests, conf.RateLimitWindow, conf.TrustedProxies).Middleware,
		Middleware:   []func(http.Handler) http.Handler{middleware.SecurityHeaders},
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + conf.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
		IdleTimeout:  conf.IdleTimeout,
	}

	g.Go(func() error {
		logger.Printf("HTTP server listening on :%s", conf.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Println("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownGracePeriod)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
