package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/api"
	"github.com/Kerhoff/carecircle/internal/audience"
	"github.com/Kerhoff/carecircle/internal/auth"
	"github.com/Kerhoff/carecircle/internal/channels"
	"github.com/Kerhoff/carecircle/internal/config"
	"github.com/Kerhoff/carecircle/internal/fanout"
	"github.com/Kerhoff/carecircle/internal/handlers"
	"github.com/Kerhoff/carecircle/internal/membership"
	"github.com/Kerhoff/carecircle/internal/metrics"
	"github.com/Kerhoff/carecircle/internal/mqtt"
	"github.com/Kerhoff/carecircle/internal/repository"
	"github.com/Kerhoff/carecircle/internal/repository/memory"
	"github.com/Kerhoff/carecircle/internal/repository/postgres"
	"github.com/Kerhoff/carecircle/internal/seed"
	"github.com/Kerhoff/carecircle/internal/service"
	"github.com/Kerhoff/carecircle/internal/telegram"
	"github.com/Kerhoff/carecircle/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, seedPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting CareCircle...")

	if cfg.RollbarToken != "" {
		hook := logger.NewRollbarHook(cfg.RollbarToken, cfg.Environment)
		l.AddHook(hook)
		defer hook.Close()
		l.Info("Rollbar error reporting enabled")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var store repository.Store
	if cfg.DatabaseURL != "" {
		db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = postgres.NewStore(db.DB)
	} else {
		l.Warn("DATABASE_URL not set, using in-memory store")
		store = memory.NewStore(memory.Open())
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Core
	members := membership.NewRegistry()
	hub := fanout.NewHub(l, audience.NewResolver(members), m)
	svc := service.New(l, store, members, hub, service.WithMetrics(m))

	if err := svc.LoadMemberships(ctx); err != nil {
		return err
	}
	if seedPath != "" && cfg.DatabaseURL == "" {
		if err := loadSeed(ctx, seedPath, store, svc, l); err != nil {
			return err
		}
	}

	// External channels
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			return fmt.Errorf("failed to create Telegram bot: %w", err)
		}
		registerCommands(bot, svc, l)
		hub.AddSink(telegram.NewPushSink(bot, store.Push), cfg.SinkWorkers, cfg.SinkQueue)
	} else {
		l.Info("TELEGRAM_TOKEN not set, push channel disabled")
	}

	if cfg.SMSEnabled() {
		sender := channels.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		hub.AddSink(channels.NewSMSSink(sender, store.Users), cfg.SinkWorkers, cfg.SinkQueue)
	} else {
		l.Info("Twilio credentials not set, SMS channel disabled")
	}

	if cfg.SendGridAPIKey != "" {
		hub.AddSink(channels.NewEmailSink(cfg.SendGridAPIKey, cfg.EmailFrom, store.Users), cfg.SinkWorkers, cfg.SinkQueue)
	} else {
		l.Info("SENDGRID_API_KEY not set, e-mail channel disabled")
	}

	var telemetry *mqtt.TelemetrySubscriber
	if cfg.MQTTBroker != "" {
		client, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTClientID, l)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		hub.AddSink(mqtt.NewAlertSink(client, cfg.MQTTTopicPrefix), cfg.SinkWorkers, cfg.SinkQueue)
		telemetry = mqtt.NewTelemetrySubscriber(client, cfg.MQTTTopicPrefix, svc, l)
		if err := telemetry.Start(); err != nil {
			return err
		}
	} else {
		l.Info("MQTT_BROKER not set, device bridge disabled")
	}

	// HTTP servers
	apiServer := api.NewServer(svc, hub, auth.NewJWT(cfg.JWTSecret, 24*time.Hour), l, cfg.CORSOrigins)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpServer.RegisterOnShutdown(apiServer.Shutdown)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		l.Infof("%s listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}
	go serve("HTTP API", httpServer)
	go serve("Metrics server", metricsServer)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		svc.StartScheduler(ctx, cfg.TickInterval)
	}()

	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.WithError(err).Error("Bot error")
			}
		}()
	}

	l.Info("CareCircle started successfully")

	var runErr error
	select {
	case <-ctx.Done():
		l.Info("Received shutdown signal...")
	case runErr = <-errCh:
		l.WithError(runErr).Error("Server failed, shutting down")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if telemetry != nil {
		telemetry.Stop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.WithError(err).Warn("HTTP API shutdown incomplete")
	}
	<-schedulerDone
	hub.Close()

	metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelMetrics()
	if err := metricsServer.Shutdown(metricsCtx); err != nil {
		l.WithError(err).Warn("Metrics server shutdown incomplete")
	}

	l.Info("CareCircle stopped")
	return runErr
}

func registerCommands(bot *telegram.Bot, svc *service.Service, l *logrus.Logger) {
	ack := handlers.NewAckHandler(svc, l)

	bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))
	bot.RegisterCommand("tasks", handlers.NewTasksHandler(svc, l))
	bot.RegisterCommand("ack", ack)
	bot.RegisterCommand("done", handlers.NewDoneHandler(svc, l))
	bot.RegisterCallback(telegram.AckCallbackPrefix, ack)
}

func loadSeed(ctx context.Context, path string, store repository.Store, svc *service.Service, l *logrus.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed: %w", err)
	}
	defer f.Close()

	res, err := seed.Load(ctx, f, store, svc, time.Now())
	if err != nil {
		return err
	}
	l.WithFields(logrus.Fields{
		"circles": len(res.Circles),
		"users":   len(res.Users),
		"tasks":   res.Tasks,
	}).Info("Seed loaded")
	return nil
}
