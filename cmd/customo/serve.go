package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/tvmmachans/Customo/migrations"

	"github.com/tvmmachans/Customo/internal/api"
	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/catalog"
	"github.com/tvmmachans/Customo/internal/commerce"
	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/infrastructure/database"
	"github.com/tvmmachans/Customo/internal/infrastructure/influxdb"
	"github.com/tvmmachans/Customo/internal/infrastructure/logging"
	"github.com/tvmmachans/Customo/internal/infrastructure/mqtt"
	"github.com/tvmmachans/Customo/internal/metrics"
	"github.com/tvmmachans/Customo/internal/telemetry"
	"github.com/tvmmachans/Customo/internal/ticket"
)

// startupHealthTimeout bounds the health check run once everything is wired.
const startupHealthTimeout = 5 * time.Second

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on clean shutdown.
func run(ctx context.Context, configPath string, optional bool) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Customo Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath, optional)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "environment", cfg.Environment)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, users, cfg.Security.Admin.Email, cfg.Security.Admin.Password,
		cfg.Security.Password.BcryptCost, log.Component("auth")); seedErr != nil {
		return fmt.Errorf("seeding admin: %w", seedErr)
	}

	authSvc := auth.NewService(users, tokenConfig(cfg), cfg.Security.Password.BcryptCost)
	authSvc.SetLogger(log.Component("auth"))

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("devices"))
	registry.SetLowBatteryThreshold(cfg.Devices.LowBatteryThreshold)

	catalogSvc := catalog.NewService(catalog.NewSQLiteRepository(db.DB))
	catalogSvc.SetLogger(log.Component("catalog"))

	commerceSvc := commerce.NewService(commerce.NewSQLiteRepository(db.DB))
	commerceSvc.SetLogger(log.Component("commerce"))

	ticketSvc := ticket.NewService(ticket.NewSQLiteRepository(db.DB))
	ticketSvc.SetLogger(log.Component("tickets"))

	trail := audit.NewTrail(audit.NewSQLiteRepository(db.DB))
	trail.SetLogger(log.Component("audit"))

	// Private registry; nothing is exported through the global one.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)
	registry.AddObserver(collector)

	components := make(map[string]api.HealthChecker)

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher := telemetry.NewPublisher(mqttClient, telemetry.DefaultQueueSize)
		publisher.SetLogger(log.Component("telemetry"))
		publisher.Start(ctx)
		defer publisher.Stop()
		registry.AddObserver(publisher)

		subscriber := telemetry.NewSubscriber(mqttClient, registry, collector)
		subscriber.SetLogger(log.Component("telemetry"))
		if subErr := subscriber.Start(); subErr != nil {
			return fmt.Errorf("subscribing to device telemetry: %w", subErr)
		}

		components["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection", "failed_batches", influxClient.Failures())
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		registry.AddObserver(telemetry.NewRecorder(influxClient))
		components["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(api.Deps{
		Config:         cfg,
		Logger:         log.Component("api"),
		Database:       db,
		Auth:           authSvc,
		Devices:        registry,
		Catalog:        catalogSvc,
		Commerce:       commerceSvc,
		Tickets:        ticketSvc,
		Audit:          trail,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		Components:     components,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	if err := healthCheck(ctx, db, components); err != nil {
		log.Warn("startup health check failed", "error", err)
	}

	log.Info("Customo Core started", "address", cfg.Addr())

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	if err := srv.Close(); err != nil {
		log.Error("error stopping API server", "error", err)
	}

	log.Info("Customo Core stopped")
	return nil
}

// openDatabase opens the SQLite database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

func tokenConfig(cfg *config.Config) auth.TokenConfig {
	return auth.TokenConfig{
		Secret:   []byte(cfg.Security.JWT.Secret),
		Issuer:   cfg.Security.JWT.Issuer,
		Audience: cfg.Security.JWT.Audience,
		TTL:      cfg.GetTokenTTL(),
	}
}

// healthCheck pings the database and every optional component once.
func healthCheck(ctx context.Context, db *database.DB, components map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for name, c := range components {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
