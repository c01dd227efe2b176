package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dod-ccpo/atat-sub000/internal/claim"
	"github.com/dod-ccpo/atat-sub000/internal/csp"
	"github.com/dod-ccpo/atat-sub000/internal/dispatcher"
	"github.com/dod-ccpo/atat-sub000/internal/fsm"
	"github.com/dod-ccpo/atat-sub000/internal/stages"
	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/internal/worker"
	"github.com/dod-ccpo/atat-sub000/pkg/config"
	"github.com/dod-ccpo/atat-sub000/pkg/database"
	"github.com/dod-ccpo/atat-sub000/pkg/kafka"
	"github.com/dod-ccpo/atat-sub000/pkg/logging"
	"github.com/dod-ccpo/atat-sub000/pkg/monitoring"
	"github.com/dod-ccpo/atat-sub000/pkg/server"
	"github.com/dod-ccpo/atat-sub000/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("provisioner")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Provisioner")

	dbURL := config.RequireEnv("DATABASE_URL")
	kafkaBrokers := strings.Split(config.GetEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	billingAccount := config.RequireEnv("BILLING_ACCOUNT_NAME")

	sweepInterval := config.GetEnvDuration("DISPATCH_INTERVAL", 60*time.Second)
	claimLease := config.GetEnvDuration("CLAIM_LEASE", 5*time.Minute)
	resumeCooldown := config.GetEnvDuration("RESUME_COOLDOWN", 60*time.Second)
	maxAttempts := config.GetEnvInt("TASK_MAX_ATTEMPTS", 5)

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("provisioner", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("provisioner", version.Version, version.GitCommit)

	// Kafka producer and consumer
	producer, err := kafka.NewProducer(kafkaBrokers, "provisioner", logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(kafkaBrokers, "provisioner", "provisioner-worker", logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("kafka", monitoring.KafkaHealthCheck(producer.GetClient()))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":         dbURL,
		"BILLING_ACCOUNT_NAME": billingAccount,
	}))

	// Provisioning core
	st := store.New(db, logger)
	guard := claim.NewGuard(db, claimLease)

	driver := newDriver(logger)
	registry, err := stages.NewAzureRegistry(driver)
	if err != nil {
		logger.WithError(err).Fatal("Invalid stage configuration")
	}
	machine := fsm.NewMachine(registry, st, logger, resumeCooldown)

	workerCfg := worker.DefaultConfig()
	workerCfg.MaxAttempts = maxAttempts
	workerCfg.BillingAccountName = billingAccount
	w := worker.New(st, guard, machine, driver, producer, logger, workerCfg, metricsCollector)
	w.Register(consumer)

	disp := dispatcher.New(st, producer, logger, sweepInterval, metricsCollector)
	disp.Start()
	defer disp.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Consumer stopped")
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Health and metrics endpoints
	router := server.SetupServiceRouter(logger, "provisioner", healthChecker, metricsCollector)
	serverConfig := server.DefaultConfig("provisioner", "18081")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

// newDriver selects the cloud driver. Only the mock driver ships today;
// CSP_DRIVER exists so a real Azure driver can slot in without touching
// the wiring.
func newDriver(logger logging.Logger) csp.Driver {
	name := config.GetEnv("CSP_DRIVER", "mock")
	if name != "mock" {
		logger.WithField("driver", name).Fatal("Unknown CSP driver")
	}
	return csp.NewMockDriver()
}
