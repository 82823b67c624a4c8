package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/screening-license/internal/boxoffice"
	"github.com/iliyamo/screening-license/internal/catalog"
	"github.com/iliyamo/screening-license/internal/config"
	"github.com/iliyamo/screening-license/internal/database"
	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/handler"
	"github.com/iliyamo/screening-license/internal/i18n"
	"github.com/iliyamo/screening-license/internal/metrics"
	"github.com/iliyamo/screening-license/internal/middleware"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/queue"
	"github.com/iliyamo/screening-license/internal/records"
	"github.com/iliyamo/screening-license/internal/repository"
	"github.com/iliyamo/screening-license/internal/router"
	"github.com/iliyamo/screening-license/internal/securestore"
	queue_publisher "github.com/iliyamo/screening-license/internal/service"
	"github.com/iliyamo/screening-license/internal/utils"
	"github.com/iliyamo/screening-license/internal/wizard"
	"github.com/iliyamo/screening-license/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("prod").Fatal("load config", "error", err)
	}
	log := logger.NewLogger(cfg.Env)

	kind := model.RecordKind(cfg.SubmissionKind)
	if !kind.Valid() {
		log.Fatal("invalid SUBMISSION_KIND", "kind", cfg.SubmissionKind)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrate database", "error", err)
	}

	var backend securestore.Backend
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		backend = securestore.NewRedisBackend(rdb, cfg.SessionTTL)
	} else {
		log.Warn("redis unavailable: sessions kept in memory, cache and rate limit disabled")
		backend = securestore.NewMemoryBackend()
	}

	m := metrics.NewMetrics("screening")
	bundle := i18n.Default()
	publisher := queue_publisher.NewPublisher(cfg.RabbitURL, log)
	rc := records.NewMySQL(repository.NewSubmissionRepo(db))
	titles := repository.NewCatalogRepo(db)

	registry := wizard.NewRegistry(wizard.Config{
		Backend: backend,
		Secret:  []byte(cfg.StorageSecret),
		Storage: securestore.Options{
			IdleTimeout:     cfg.IdleTimeout,
			FreshLoadWindow: cfg.FreshLoadWindow,
		},
		Form:        formstate.Options{PersistDebounce: cfg.PersistDebounce},
		SettleDelay: cfg.SettleDelay,
	}, wizard.Deps{
		Records:   rc,
		Publisher: publisher,
		Bundle:    bundle,
		Tokens: func(id string, k model.RecordKind) (string, error) {
			tok, err := utils.NewBoxOfficeToken(cfg.SessionSecret, id, string(k), cfg.BoxOfficeTokenTTL)
			return tok.Token, err
		},
		Kind:    kind,
		Log:     log,
		Metrics: m,
	})
	go registry.Run(ctx)

	go func() {
		if err := queue.NewConsumer(cfg.RabbitURL, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event consumer stopped", "error", err)
		}
	}()

	searcher := catalog.NewSearcher(titles, catalog.SearchOptions{Debounce: cfg.SearchDebounce}, log, m)
	images := catalog.NewImageFetcher(catalog.ImageOptions{
		BaseURL:         cfg.ImageUpstreamURL,
		SubscriptionKey: cfg.ImageSubscriptionKey,
	}, log)

	form := handler.NewFormHandler(registry)
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, router.Handlers{
		Session:   handler.NewSessionHandler(registry, cfg.SessionSecret, cfg.SessionTTL),
		Form:      form,
		Lists:     handler.NewListHandler(form, titles),
		BoxOffice: handler.NewBoxOfficeHandler(boxoffice.NewService(rc, publisher, log, m)),
		Catalog:   handler.NewCatalogHandler(searcher, images),
		Health:    handler.Health(db),
	}, router.Middleware{
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}, cfg.SessionSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "kind", kind)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	registry.Close()
}
