// Package main is the entry point for the ZTE MQTT bridge.
// It wires the modem session, the metric pipeline and the broker client
// together and manages the application lifecycle.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/adapter/config"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/adapter/fixture"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/adapter/mqtt"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/adapter/zte"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/health"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/metrics"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/service"
	"github.com/nexus-edge/zte-mqtt-bridge/pkg/logging"
)

const serviceName = "zte-mqtt-bridge"

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	logger := logging.NewLogger("info", "json")
	logger.Info().Str("service", serviceName).Str("version", version).Msg("Starting ZTE MQTT bridge")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Re-initialize logging with the configured level and format.
	logger = logging.NewLogger(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger.Info().
		Str("device", cfg.Device.Host).
		Str("broker", cfg.Broker.URL()).
		Str("root_topic", cfg.Broker.RootTopic).
		Msg("Configuration loaded")

	metricsRegistry := metrics.NewRegistry()
	runState := domain.NewRunState()

	// The fixture modem stands in for the device when enabled; everything
	// downstream sees the same interfaces either way.
	var (
		deviceConn    service.DeviceConn
		deviceSession service.DeviceSession
		deviceStatus  health.DeviceStatus
	)
	if cfg.Fixture.Enabled {
		modem, err := fixture.Load(cfg.Fixture.Path, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load fixture modem")
		}
		logger.Warn().Str("path", cfg.Fixture.Path).Msg("Fixture mode enabled, no live device traffic")
		deviceConn, deviceSession, deviceStatus = modem, modem, modem
	} else {
		session := zte.NewSession(zte.SessionConfig{
			BaseURL:  cfg.Device.Host,
			Password: cfg.Device.Password,
		}, nil, logger)
		deviceConn, deviceSession, deviceStatus = session, session, session
	}

	aggregator := service.NewAggregator(service.AggregatorConfig{}, deviceConn, logger, metricsRegistry)

	mqttClient := mqtt.NewClient(mqtt.ClientConfig{
		BrokerURL: cfg.Broker.URL(),
		Username:  cfg.Broker.Username,
		Password:  cfg.Broker.Password,
		QoS:       cfg.Broker.QoS,
	}, logger)

	dispatcher, err := service.NewDispatcher(service.DispatcherConfig{
		RootTopic: cfg.Broker.RootTopic,
	}, aggregator, mqttClient, runState, logger, metricsRegistry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create dispatcher")
	}
	mqttClient.SetHandler(dispatcher.HandleMessage)

	supervisor, err := service.NewSupervisor(service.SupervisorConfig{
		RootTopic:         cfg.Broker.RootTopic,
		ReconnectInterval: cfg.Broker.ReconnectInterval,
	}, deviceSession, mqttClient, runState, logger, metricsRegistry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create supervisor")
	}

	healthChecker := health.NewChecker(mqttClient, deviceStatus, runState, logger)

	// HTTP sidecar for health, run state and metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.HealthHandler)
	mux.HandleFunc("/health/live", healthChecker.LiveHandler)
	mux.HandleFunc("/health/ready", healthChecker.ReadyHandler)
	mux.HandleFunc("/status", healthChecker.StatusHandler)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Service.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisor.Start(ctx)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := supervisor.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping supervisor")
	}
	dispatcher.Stop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	logger.Info().Msg("ZTE MQTT bridge shutdown complete")
}
