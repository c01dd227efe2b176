package main

import (
	"github.com/dod-ccpo/atat-sub000/internal/portal"
	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/config"
	"github.com/dod-ccpo/atat-sub000/pkg/database"
	"github.com/dod-ccpo/atat-sub000/pkg/logging"
	"github.com/dod-ccpo/atat-sub000/pkg/monitoring"
	"github.com/dod-ccpo/atat-sub000/pkg/server"
	"github.com/dod-ccpo/atat-sub000/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("portal")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Portal API")

	dbURL := config.RequireEnv("DATABASE_URL")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("portal", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("portal", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
	}))

	// Initialize handlers
	portal.Init(store.New(db, logger), logger)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "portal", healthChecker, metricsCollector)
	portal.RegisterRoutes(router)

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("portal", "18080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
