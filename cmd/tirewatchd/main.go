// Package main is the entry point for the tirewatch simulation daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tirewatch/internal/alerting"
	"tirewatch/internal/api"
	"tirewatch/internal/config"
	"tirewatch/internal/session"
	"tirewatch/internal/sink"
)

func main() {
	// Load configuration first so the log level can come from it
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"sensors", len(cfg.Sensors),
		"seed", cfg.Simulation.Seed,
		"tick_interval", cfg.Simulation.TickInterval,
		"kafka_enabled", cfg.Kafka.Enabled,
	)

	sess, err := session.New(cfg)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Kafka alert sink
	var kafkaSink *sink.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink, err = sink.NewKafkaSink(cfg.Kafka)
		if err != nil {
			slog.Error("failed to create kafka sink", "error", err)
			os.Exit(1)
		}
		sess.AddAlertHandler(func(alerts []alerting.Alert) {
			if err := kafkaSink.Publish(ctx, alerts); err != nil {
				slog.Error("kafka publish failed", "error", err, "alerts", len(alerts))
			}
		})
		slog.Info("kafka alert sink enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	handler := api.NewHandler(sess)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Tick driver
	go runTicker(ctx, sess, cfg.Simulation.TickInterval)

	go func() {
		slog.Info("starting tirewatch server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Stop the tick driver
	cancel()

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			slog.Error("kafka sink close error", "error", err)
		}
		published, failed := kafkaSink.Stats()
		slog.Info("kafka sink metrics", "published", published, "failed", failed)
	}

	counts := sess.Counts()
	slog.Info("shutdown complete",
		"ticks", sess.Completed(),
		"alerts_total", counts.Total,
	)
}

// runTicker advances the session at the configured wall-clock pace.
func runTicker(ctx context.Context, sess *session.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("tick driver started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick driver stopping")
			return
		case <-ticker.C:
			snap := sess.Tick()
			if len(snap.Alerts) > 0 {
				slog.Debug("tick completed", "tick", snap.Tick, "alerts", len(snap.Alerts))
			}
		}
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}
