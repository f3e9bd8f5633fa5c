// BotLink Core - device hub for the BotLink sensor/actuator fleet.
//
// The hub accepts long-lived websocket connections from embedded
// devices, decodes their binary protocol, keeps authoritative device
// state in memory, fans changes out to dashboard observers and runs
// the action scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/botlink-core/migrations"

	"github.com/nerrad567/botlink-core/internal/api"
	"github.com/nerrad567/botlink-core/internal/auth"
	"github.com/nerrad567/botlink-core/internal/device"
	"github.com/nerrad567/botlink-core/internal/hub"
	"github.com/nerrad567/botlink-core/internal/infrastructure/config"
	"github.com/nerrad567/botlink-core/internal/infrastructure/database"
	"github.com/nerrad567/botlink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/botlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/botlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/botlink-core/internal/notify"
	"github.com/nerrad567/botlink-core/internal/schedule"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for consistent
// exit-code handling.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting BotLink Core", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	// Database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Notification transport (optional)
	var notifier device.Notifier = notify.Nop{}
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)

		mqttNotifier := notify.NewMQTTNotifier(mqttClient, cfg.MQTT.Topic)
		mqttNotifier.SetLogger(log)
		notifier = mqttNotifier
		log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	} else {
		log.Info("MQTT disabled, notifications dropped")
	}

	// Telemetry sink (optional)
	var telemetry device.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Device registry and factory
	registry := device.NewRegistry()
	registry.SetLogger(log)

	factory := device.NewFactory(registry, device.Env{
		Store:     device.NewSQLiteStore(db.DB),
		Notify:    notifier,
		Telemetry: telemetry,
		Logger:    log,
	})

	// Connection hub; its observer registry doubles as the broadcaster.
	verifier := auth.NewVerifier(cfg.Security.JWT.AccessSecret, cfg.Security.JWT.RefreshSecret)
	h := hub.New(cfg.WebSocket, registry, factory, verifier, log)
	factory.Env().Broadcast = h.Observers()

	if err := factory.LoadAll(ctx); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	log.Info("device registry hydrated", "devices", len(registry.All()))

	// Scheduler
	scheduleStore := schedule.NewSQLiteStore(db.DB)
	calendar := schedule.NewCalendar(scheduleStore, log)
	scheduler := schedule.NewScheduler(scheduleStore, registry, calendar, log)
	if err := scheduler.Init(ctx); err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}
	defer scheduler.Close()

	// HTTP front
	server, err := api.New(api.Deps{
		Config:    cfg.Server,
		WS:        cfg.WebSocket,
		Logger:    log,
		Registry:  registry,
		Scheduler: scheduler,
		Hub:       h,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	h.CloseAll()

	log.Info("BotLink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path, preferring the
// BOTLINK_CONFIG environment variable.
func getConfigPath() string {
	if path := os.Getenv("BOTLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
