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
	"time"

	"github.com/spf13/cobra"

	"worklogd/internal/config"
	"worklogd/internal/httpapi"
	"worklogd/internal/notify"
	"worklogd/internal/reminder"
	"worklogd/internal/sessionclock"
	"worklogd/internal/storage"
	"worklogd/internal/tasklog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "worklogd",
		Short:         "Work session, task, and reminder service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			repo, err := storage.OpenSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			if down {
				return storage.MigrateDown(repo.DB())
			}
			return storage.MigrateUp(repo.DB())
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll migrations back instead")
	return cmd
}

func serve(cfg *config.Config) error {
	logger := log.New(os.Stderr, "worklogd ", log.LstdFlags)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	// Serialize writers; file-backed sqlite returns SQLITE_BUSY under
	// concurrent connections otherwise.
	repo.DB().SetMaxOpenConns(1)

	if err := storage.MigrateUp(repo.DB()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	clock := sessionclock.New(repo)
	taskLog := tasklog.New(repo)
	buffer := tasklog.NewAutoSaveBuffer(taskLog, tasklog.AutoSaveConfig{
		Window:      cfg.AutoSave.Window,
		MaxAttempts: cfg.AutoSave.MaxAttempts,
		Backoff:     cfg.AutoSave.Backoff,
	}, logger)

	var sink notify.Sink = notify.NewLogSink(logger)
	if cfg.Notify.WebhookURL != "" {
		sink = notify.NewWebhookSink(cfg.Notify.WebhookURL)
	}

	scheduler := reminder.New(repo, sink, loc, logger)
	if err := scheduler.Init(context.Background()); err != nil {
		return fmt.Errorf("reminder init: %w", err)
	}

	go func() {
		for failure := range buffer.Failures() {
			logger.Printf("autosave gave up on task %s field %s: %v",
				failure.TaskID, failure.Field, failure.Err)
		}
	}()

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      httpapi.NewServer(clock, taskLog, buffer, scheduler, logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}

	// Pending debounced edits must land before the process exits.
	buffer.Flush(shutdownCtx)
	scheduler.Shutdown()
	return nil
}
