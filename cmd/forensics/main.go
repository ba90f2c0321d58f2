// Gray Logic Forensics - forensic readiness core
//
// This is the main entry point for the forensic readiness service. It
// discovers the devices, platform integrations and LAN components of a
// smart environment, keeps the ones the operator declared of interest,
// provisions one evidence store per object, and subscribes to state
// changes so future activity is captured as evidence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-forensics/internal/api"
	"github.com/nerrad567/gray-logic-forensics/internal/bus"
	"github.com/nerrad567/gray-logic-forensics/internal/evidence"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-forensics/internal/inventory"
	"github.com/nerrad567/gray-logic-forensics/internal/readiness"
	"github.com/nerrad567/gray-logic-forensics/internal/secrets"
	"github.com/nerrad567/gray-logic-forensics/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Forensics",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

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
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// #nosec G115 -- qos validated to 0..2 by config.Validate
	notifications := bus.NewMQTTBus(mqttClient, byte(cfg.MQTT.QoS), cfg.Evidence.QueueSize)
	notifications.SetLogger(log.With("component", "bus"))
	defer func() {
		if closeErr := notifications.Close(); closeErr != nil {
			log.Error("error closing notification bus", "error", closeErr)
		}
	}()

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	var mirrors evidence.Mirrors
	if influxClient != nil && cfg.Evidence.MirrorToInfluxDB {
		mirrors = append(mirrors, readiness.NewInfluxMirror(influxClient))
	}
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.With("component", "feed"))
		go hub.Run(ctx)
		mirrors = append(mirrors, hub)
	}

	setup, err := buildReadiness(cfg, log, db, notifications, mirrors)
	if err != nil {
		return fmt.Errorf("building readiness pipeline: %w", err)
	}
	defer func() {
		log.Info("stopping evidence collection")
		if closeErr := setup.Close(); closeErr != nil {
			log.Error("error stopping evidence collection", "error", closeErr)
		}
	}()

	var apiServer *api.Server
	if cfg.API.Enabled {
		if cfg.Security.JWT.Secret == "" {
			log.Warn("inspection API has no JWT secret, evidence is readable without a token")
		}
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			Pipeline: setup,
			Hub:      hub,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	report, err := establishReadiness(ctx, log, setup)
	if err != nil {
		return err
	}
	if report != nil {
		logReport(log, report)
		publishReport(log, cfg.Site.ID, mqttClient, influxClient, report)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// establishReadiness runs the readiness pipeline once.
//
// Only a configuration error is returned: the operator has to fix the
// preferences before anything can be collected. Inventory, consistency and
// source failures are logged and the process keeps running with the
// pipeline in the failed phase, so the API still reports what happened.
//
// Returns:
//   - *readiness.Report: The run summary, or nil when the run failed
//   - error: A wrapped readiness.ErrConfiguration, otherwise nil
func establishReadiness(ctx context.Context, log *logging.Logger, setup *readiness.Setup) (*readiness.Report, error) {
	report, err := setup.Run(ctx)
	if err == nil {
		return report, nil
	}
	if errors.Is(err, readiness.ErrConfiguration) {
		return nil, fmt.Errorf("establishing forensic readiness: %w", err)
	}

	log.Error("forensic readiness not established, no evidence is being collected",
		"error", err,
		"phase", setup.Phase(),
	)
	return nil, nil //nolint:nilnil // a failed run is reported through the pipeline phase
}

// getConfigPath returns the configuration file path.
// Checks FORENSICS_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv("FORENSICS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInflux connects the optional evidence timeline. A nil client and
// nil error mean the mirror is disabled.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		if errors.Is(err, influxdb.ErrDisabled) {
			return nil, nil
		}
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// buildReadiness assembles the readiness pipeline from its collaborators.
// mirrors may be empty.
func buildReadiness(cfg *config.Config, log *logging.Logger, db *database.DB, notifications bus.Bus, mirrors evidence.Mirrors) (*readiness.Setup, error) {
	deps := readiness.Deps{
		Readiness: cfg.Readiness,
		Evidence:  cfg.Evidence,
		LAN:       cfg.LAN,
		Logger:    log,
		Source:    inventory.NewFileSource(cfg.Inventory.Path),
		Bus:       notifications,
		Backend:   evidence.NewSQLiteBackend(db.DB),
		Secrets:   secrets.NewResolver(cfg.Secrets.Paths),
	}
	if len(mirrors) > 0 {
		deps.Mirror = mirrors
	}
	return readiness.New(deps)
}

func logReport(log *logging.Logger, report *readiness.Report) {
	for _, f := range report.ProvisionFailures {
		log.Warn("object not covered by evidence collection",
			"category", f.Category,
			"object_id", f.ObjectID,
			"error", f.Err,
		)
	}
	for _, res := range report.Registration {
		log.Info("evidence collection path",
			"path", res.Path,
			"active", res.Active,
			"reserved", res.Reserved,
			"entities", res.Entities,
		)
	}
	if report.MaintenanceErr != nil {
		log.Warn("inventory will not follow device joins and leaves", "error", report.MaintenanceErr)
	}
}

// publishReport makes the run summary visible to the rest of the site: a
// retained MQTT message and, when enabled, a timeline point. Failures are
// logged only.
func publishReport(log *logging.Logger, siteID string, publisher retainedPublisher, influxClient *influxdb.Client, report *readiness.Report) {
	summary := report.Summary()

	payload, err := json.Marshal(summary)
	if err != nil {
		log.Warn("encoding readiness summary failed", "error", err)
		return
	}
	if err := publisher.PublishRetained(mqtt.Topics{}.ReadinessReport(), payload); err != nil {
		log.Warn("publishing readiness summary failed", "error", err)
	}

	if influxClient != nil {
		influxClient.WritePoint(influxdb.MeasurementReadiness, map[string]string{"site": siteID}, summary.Fields())
	}
}

// retainedPublisher is the part of the MQTT client publishReport needs.
type retainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}
