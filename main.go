package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbot "help112-bot/bot"
	"help112-bot/internal/antispam"
	"help112-bot/internal/auth"
	"help112-bot/internal/config"
	"help112-bot/internal/content"
	"help112-bot/internal/database"
	"help112-bot/internal/gate"
	"help112-bot/internal/handlers"
	"help112-bot/internal/locales"
	"help112-bot/internal/logging"
	"help112-bot/internal/users"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, ErrorDir: cfg.LogDir})
	if err != nil {
		logger.WithError(err).Warn("Daily error log disabled")
	}
	defer func() {
		if err := logging.Close(logger); err != nil {
			logrus.WithError(err).Warn("Failed to close error log")
		}
	}()
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     cfg.Version,
		Debug:       cfg.Debug,
	})
	if err != nil {
		logger.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)
	if cfg.SentryDSN == "" {
		logger.Warn("SENTRY_DSN is not set. Error tracking disabled.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bundle, err := locales.New(cfg.DefaultLanguage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize locales: %v", err)
	}
	catalog, err := content.LoadCatalog(cfg.ContentFile)
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatalf("Failed to load content: %v", err)
	}
	logger.WithField("entries", catalog.Size()).Info("Content catalog loaded")

	storage := database.Open(ctx, database.StorageConfig{
		UseMongo:       cfg.UseMongoDB,
		MongoURI:       cfg.MongoDBURI,
		MongoDatabase:  cfg.MongoDBDatabase,
		ConnectTimeout: cfg.MongoDBConnectTimeout,
		DataDir:        cfg.DataDir,
	}, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := storage.Close(closeCtx); err != nil {
			logger.WithError(err).Error("Error disconnecting from MongoDB")
			sentry.CaptureException(err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	directory := users.NewDirectory(storage.Users, logger)
	limiter := antispam.New(antispam.Options{})
	requestGate := gate.New(directory, limiter, logger, gate.WithMetrics(gate.NewMetrics(registry)))
	adminChecker := auth.NewAdminChecker(cfg.AdminIDs)
	if adminChecker.Count() == 0 {
		logger.Warn("ADMIN_IDS is empty, admin commands are disabled")
	}

	messageHandler, err := handlers.NewMessageHandler(handlers.Deps{
		Gate:     requestGate,
		Users:    directory,
		Admins:   adminChecker,
		Content:  catalog,
		Commands: storage.Commands,
		Locales:  bundle,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create message handler: %v", err)
	}

	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatalf("Failed to create telego bot: %v", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatalf("Failed to reach Telegram: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"username": me.Username,
		"storage":  storage.Mode,
	}).Info("Bot authorized")

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatalf("Failed to start long polling: %v", err)
	}

	appBot, err := appbot.New(appbot.BotDeps{
		Bot:         bot,
		UpdatesChan: updates,
		Handler:     messageHandler,
		Commands:    messageHandler.BotCommands(),
		Logger:      logger,
	})
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatal(err)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.WithField("addr", cfg.MetricsAddr).Info("Serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		appBot.Start(ctx)
		close(done)
	}()

	<-ctx.Done()
	logger.Info("Shutting down bot...")
	<-done
	appBot.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}

	logger.Info("Bot shutdown complete")
}
