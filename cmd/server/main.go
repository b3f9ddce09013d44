package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prajakta250421/ScribeChain/internal/auth"
	"github.com/prajakta250421/ScribeChain/internal/config"
	"github.com/prajakta250421/ScribeChain/internal/httpapi"
	"github.com/prajakta250421/ScribeChain/internal/hub"
	"github.com/prajakta250421/ScribeChain/internal/ledger"
	"github.com/prajakta250421/ScribeChain/internal/storage"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}

	store, err := storage.NewPostgres(db)
	if err != nil {
		log.Fatal("init content store", zap.Error(err))
	}
	led, err := ledger.NewPostgres(db)
	if err != nil {
		log.Fatal("init ledger", zap.Error(err))
	}

	signer := auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL)

	ctx := context.Background()
	h := hub.NewHub(ctx, log)
	api := httpapi.NewAPI(signer, store, led, log)

	handler := httpapi.SetupRoutes(h, api, log)

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
