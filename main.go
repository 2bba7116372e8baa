package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/padraicbc/mtgvault/cache"
	"github.com/padraicbc/mtgvault/cardmarket"
	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/config"
	"github.com/padraicbc/mtgvault/db"
	"github.com/padraicbc/mtgvault/handlers"
	"github.com/padraicbc/mtgvault/importer"
	applog "github.com/padraicbc/mtgvault/logger"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug, "api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	bdb := db.Setup(cfg)
	defer bdb.Close()

	if err := db.CreateTables(context.Background(), bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	cat := catalog.NewDB(bdb)
	coord := importer.NewCoordinator(importer.CatalogStore(cat), logger.Named("import"),
		importer.WithWorkers(cfg.Import.Workers))
	pipeline := importer.NewPipeline(&http.Client{Timeout: cfg.Import.Timeout}, coord, logger.Named("import"))

	gate := cardmarket.NewGate(cache.NewDB(bdb), cfg.Cardmarket.DailyLimit, logger.Named("cardmarket"))
	client := cardmarket.NewClient(cfg.Cardmarket, gate, nil, logger.Named("cardmarket"))
	syncer := cardmarket.NewSyncer(client, cat, cfg.Cardmarket.RequestDelay, logger.Named("cardmarket"))
	if !cfg.CardmarketConfigured() {
		logger.Warn("cardmarket credentials missing, price sync disabled")
	}

	h := handlers.New(handlers.Deps{
		DB:             bdb,
		JWTKey:         cfg.JWTKey(),
		AdminUsers:     cfg.AdminUsers,
		Pipeline:       pipeline,
		Syncer:         syncer,
		Cardmarket:     client,
		ImportURL:      cfg.Import.SourceURL,
		BatchSize:      cfg.Import.BatchSize,
		ImportDeadline: cfg.Import.JobTimeout,
		Log:            logger,
	})
	defer h.Wait()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	h.Register(e)

	if cfg.Debug || len(cfg.TLSDomains) == 0 {
		logger.Info("starting server", zap.Bool("debug", cfg.Debug), zap.String("addr", cfg.Port))
		if err := e.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	logger.Info("starting tls server", zap.Strings("domains", cfg.TLSDomains))
	if err := s.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
		logger.Error("tls server exited", zap.Error(err))
		os.Exit(1)
	}
}
