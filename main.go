package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kanromiku/Industrial-Internet/bus"
	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/projector"
	"github.com/kanromiku/Industrial-Internet/server"
	"github.com/kanromiku/Industrial-Internet/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath, cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Close()

	projectorManager, err := projector.NewManager(cfg.Projectors)
	if err != nil {
		logger.Error("failed to initialize projectors: %v", err)
		os.Exit(1)
	}

	// Storage first: an unreachable database is fatal at startup.
	database, err := storage.NewDatabaseBackend(cfg.Storage.Database.Type, cfg.Storage.Database.DSN)
	if err != nil {
		logger.Error("failed to initialize database storage: %v", err)
		os.Exit(1)
	}

	backends := []storage.Backend{database}
	if cfg.Storage.File.Enabled {
		fileStorage, err := storage.NewFileStorage(cfg.Storage.File.Path)
		if err != nil {
			logger.Warn("file storage unavailable, continuing without it: %v", err)
		} else {
			backends = append(backends, fileStorage)
		}
	}
	storageManager := storage.NewManager(backends)

	// Bus second: an unreachable broker only disables publishing.
	var publisher bus.Publisher
	if cfg.Bus.Enabled {
		publisher, err = bus.NewPublisher(cfg.Bus)
		if err != nil {
			logger.Warn("message bus unavailable, publishing disabled: %v", err)
			publisher = nil
		}
	} else {
		logger.Info("message bus disabled by config")
	}

	srv := server.New(cfg.Server, projectorManager, storageManager, publisher)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server: %v", err)
		storageManager.Close()
		os.Exit(1)
	}

	err = config.WatchConfig(*configPath, func(newCfg *config.Config) error {
		logger.Info("applying updated configuration...")

		if err := projectorManager.Reload(newCfg.Projectors); err != nil {
			return err
		}

		// Server, storage and bus changes take effect on restart.
		logger.Info("server, storage and bus config updates take effect after restart")
		return nil
	})
	if err != nil {
		logger.Warn("failed to watch config file: %v", err)
	} else {
		logger.Info("watching config file for changes")
	}

	logger.Info("telemetry ingestion service started, waiting for device data...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")
	srv.Stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close bus publisher: %v", err)
		}
	}
	storageManager.Close()
	logger.Info("service stopped")
}
