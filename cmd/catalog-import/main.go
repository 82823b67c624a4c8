package main // catalog-import loads catalog titles from a JSON file into MySQL

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/iliyamo/screening-license/internal/catalog"
	"github.com/iliyamo/screening-license/internal/config"
	"github.com/iliyamo/screening-license/internal/database"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/repository"
	"github.com/iliyamo/screening-license/pkg/logger"
)

// usage: catalog-import titles.json
// The file holds a JSON array of catalog titles.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("prod").Fatal("load config", "error", err)
	}
	log := logger.NewLogger(cfg.Env)
	if len(os.Args) != 2 {
		log.Fatal("usage: catalog-import <titles.json>")
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal("read titles", "path", os.Args[1], "error", err)
	}
	var titles []model.CatalogTitle
	if err := json.Unmarshal(data, &titles); err != nil {
		log.Fatal("decode titles", "error", err)
	}
	titles, err = catalog.Prepare(titles)
	if err != nil {
		log.Fatal("invalid titles", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrate database", "error", err)
	}
	if err := repository.NewCatalogRepo(db).Upsert(ctx, titles); err != nil {
		log.Fatal("upsert titles", "error", err)
	}
	log.Info("catalog imported", "titles", len(titles))
}
