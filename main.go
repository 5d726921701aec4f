package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/api"
	"github.com/jisilva10/ALAIN2.0/internal/config"
	"github.com/jisilva10/ALAIN2.0/internal/controller"
	"github.com/jisilva10/ALAIN2.0/internal/redis"
	"github.com/jisilva10/ALAIN2.0/internal/service/ai"
	"github.com/jisilva10/ALAIN2.0/internal/service/registry"
	"github.com/jisilva10/ALAIN2.0/internal/storage"
	"github.com/jisilva10/ALAIN2.0/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("ALAIN_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("ALAIN_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	store := storage.NewStore(db, dbType, rdb)

	reg := registry.New(store)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer loadCancel()
	if err := reg.Load(loadCtx); err != nil {
		log.Fatalf("load sessions: %v", err)
	}

	gemini, err := ai.NewGemini(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatalf("init model backend: %v", err)
	}
	streamer := ai.NewCoordinator(gemini)

	pool := worker.NewPool(
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)
	defer pool.Stop()

	ctrl := controller.New(reg, store, streamer, pool)
	handlers := api.NewHandler(ctrl, reg, store)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
