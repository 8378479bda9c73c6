package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/skip/internal/api"
	"example.com/backstage/services/skip/internal/cache"
	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/messaging"
	"example.com/backstage/services/skip/internal/model"
	"example.com/backstage/services/skip/internal/repository"
	"example.com/backstage/services/skip/internal/search"
	"example.com/backstage/services/skip/internal/service"
	"example.com/backstage/services/skip/internal/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting server")

	// Initialize New Relic
	nrApp, err := telemetry.InitNewRelic(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize New Relic")
	}

	// Connect to database
	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if cfg.EnableMigrations {
		if err := db.Migrate(conn); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	// Initialize Redis cache
	cacheClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis, caching disabled")
		cacheClient = cache.NewDisabledClient()
	}

	// Initialize Elasticsearch
	indexer, err := search.NewIndexer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Elasticsearch")
	}

	// Initialize Azure Service Bus
	sbClient, err := messaging.NewServiceBusClient(cfg, "skip-service")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Azure Service Bus")
	}
	defer sbClient.Close()

	// Initialize lifecycle service
	repos := repository.New(conn)
	lifecycle := service.NewLifecycleService(conn, repos, cacheClient, indexer, sbClient, service.TransferDefaults{
		DestinationName: cfg.TransferDestinationName,
		DestinationType: model.ParseDestinationType(cfg.TransferDestinationType),
		SiteID:          cfg.TransferSiteID,
		CommodityID:     cfg.TransferCommodityID,
		ProducerName:    cfg.ProducerName,
		CarrierCompany:  cfg.CarrierCompany,
	})

	// Initialize server
	server := api.NewServer(cfg, lifecycle, nrApp)

	// Start HTTP server
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
