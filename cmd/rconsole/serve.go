package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rconsole-project/rconsole/internal/events"
	"github.com/rconsole-project/rconsole/internal/gateway"
	"github.com/rconsole-project/rconsole/internal/history"
	"github.com/rconsole-project/rconsole/internal/rcon"
	"github.com/rconsole-project/rconsole/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway in front of the server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	app := cfg.GetApplicationData()
	if !app.Gateway.Enabled {
		return fmt.Errorf("gateway is disabled in configuration, set application_data.gateway.enabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()

	var store *history.Store
	if app.History.Enabled {
		var err error
		store, err = history.NewStore(app.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()
		store.Attach(bus)
	}

	var metrics *telemetry.Metrics
	if app.Telemetry.MetricsEnabled {
		metrics = telemetry.NewMetrics()
		metrics.Attach(bus)
	}

	client, err := rcon.Dial(sessionOptions(), bus)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Disconnect()

	if err := client.Authenticate(ctx, ""); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	var hist gateway.HistoryReader
	if store != nil {
		hist = store
	}
	var scrape http.Handler
	if metrics != nil {
		scrape = metrics.Handler()
	}

	gw := gateway.NewServer(app.Gateway, client, hist, scrape)
	g.Go(func() error {
		return gw.Start(ctx)
	})

	if app.Telemetry.MQTT.Enabled {
		mqttHandler, err := telemetry.NewMQTTHandler(app.Telemetry.MQTT, bus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		} else {
			g.Go(func() error {
				if err := mqttHandler.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("MQTT telemetry failed")
				}
				return nil
			})
		}
	}

	if store != nil && app.History.RetentionDays > 0 {
		retention := time.Duration(app.History.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			pruneHistory(ctx, store, retention)
			return nil
		})
	}

	log.Info().
		Int("gateway_port", app.Gateway.Port).
		Str("server", client.Address()).
		Msg("serve mode running")

	err = g.Wait()

	bus.Stop()
	log.Info().Msg("rconsole stopped")
	return err
}

// pruneHistory removes expired audit entries once a day.
func pruneHistory(ctx context.Context, store *history.Store, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.Prune(retention); err != nil {
				log.Warn().Err(err).Msg("history prune failed")
			}
		}
	}
}
