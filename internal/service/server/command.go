package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oshokin/equipment-monitor/internal/api/client"
	"github.com/oshokin/equipment-monitor/internal/config"
	"github.com/oshokin/equipment-monitor/internal/logger"
	"github.com/oshokin/equipment-monitor/internal/mqtt"
	equipmentrepo "github.com/oshokin/equipment-monitor/internal/repository/equipment"
	"github.com/oshokin/equipment-monitor/internal/repository/queue"
	"github.com/oshokin/equipment-monitor/internal/service/monitor"
)

// Options controls the monitor-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// StateDir provides an optional override for the state directory.
	StateDir string
}

// shutdownTimeout bounds graceful HTTP shutdown on exit.
const shutdownTimeout = 10 * time.Second

// Run starts the monitor and blocks until the context is canceled.
// Loads configuration, opens the persistence layer, builds the API client
// and monitor service, starts the sync loop, connects the sensor bus when
// configured and serves the HTTP admin surface.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "monitor-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.StateDir != "" {
		settings.StateDir = opts.StateDir
	}

	listenAddress := settings.ListenAddr
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	apiClient, err := client.New(settings)
	if err != nil {
		return fmt.Errorf("initialise API client: %w", err)
	}

	// Connect the sensor bus only when a broker is configured; the monitor
	// still serves the HTTP ingestion path without one.
	var (
		bus      *mqtt.Client
		actuator monitor.Actuator
	)

	if settings.MQTT.Broker != "" {
		bus, err = mqtt.Connect(&settings.MQTT)
		if err != nil {
			return fmt.Errorf("connect state bus: %w", err)
		}

		actuator = mqtt.NewActuator(bus)
	}

	repo := equipmentrepo.NewFileRepository(settings.EquipmentFile())
	store := queue.NewFileStore(settings.QueueFile())

	svc, err := monitor.NewService(ctx, settings, repo, store, apiClient, actuator)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	if bus != nil {
		if err = mqtt.NewIngest(bus, svc).Start(ctx); err != nil {
			return fmt.Errorf("subscribe to sensor updates: %w", err)
		}
	}

	// The sync loop gets its own cancellation so it stops before the final
	// queue flush in Shutdown.
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()

	go svc.RunSync(syncCtx)

	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           NewHandler(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.InfoKV(ctx, "Monitor server listening",
		"listen_address", listenAddress,
		"state_dir", settings.StateDir,
		"offline_mode", settings.OfflineMode)

	// Done channel is closed after shutdown finishes to ensure we block
	// until cleanup completes before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Errorf(ctx, "Shutdown HTTP server: %v", shutdownErr)
		}

		stopSync()
		svc.Shutdown(shutdownCtx)

		if bus != nil {
			bus.Disconnect()
		}

		close(done)
	}()

	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "Monitor server stopped")

	return nil
}
