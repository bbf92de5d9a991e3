package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tradedash/crypto_bot_dash/internal/infrastructure/feed"
	"github.com/tradedash/crypto_bot_dash/internal/infrastructure/logger"
	"github.com/tradedash/crypto_bot_dash/internal/infrastructure/storage"
	"github.com/tradedash/crypto_bot_dash/internal/reporter"
	"github.com/tradedash/crypto_bot_dash/internal/usecase"
	"github.com/tradedash/crypto_bot_dash/internal/web"
)

type Config struct {
	Feed struct {
		WSEndpoint string `yaml:"ws_endpoint"`
		SeedLimit  int    `yaml:"seed_limit"`
	} `yaml:"feed"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging logger.Config `yaml:"logging"`
	Server  struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "dashboard.db"
	}
	return &cfg, nil
}

func main() {
	// Optional .env for local overrides; ignore when absent.
	_ = godotenv.Load()

	cfgPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	marketFeed := feed.NewBinanceFeed(cfg.Feed.WSEndpoint, log)

	engine := usecase.NewEngine(marketFeed, store, store, cfg.Feed.SeedLimit, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.Fatal("Failed to start engine", zap.Error(err))
	}

	server := web.NewServer(cfg.Server.Port, engine, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Web server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown", zap.Error(err))
	}
	engine.Stop()
	cancel()

	fmt.Println(reporter.BotsTable(engine.Bots()))
	fmt.Println(reporter.PositionsTable(engine.Positions()))
}
