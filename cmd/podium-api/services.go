package main

import (
	"database/sql"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/config"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/database"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/points"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/results"
	"github.com/MarcoPoloResearchLab/podium/backend/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// services holds the services shared by the server and the one-shot commands.
type services struct {
	config       config.AppConfig
	logger       *zap.Logger
	sqlDB        *sql.DB
	store        *store.Store
	registry     *prometheus.Registry
	metrics      *metrics.Recorder
	dispatcher   *notify.Dispatcher
	synchronizer *results.Synchronizer
	auditor      *results.Auditor
	points       *points.Service
}

func newServices() (*services, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	repositories, err := store.New(store.Config{Database: db, Clock: time.Now})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, err
	}

	storeSink, err := notify.NewStoreSink(repositories.Notifications, nil, time.Now)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher()

	synchronizer, err := results.NewSynchronizer(results.Config{
		Competitions: repositories.Competitions,
		Submissions:  repositories.Submissions,
		Results:      repositories.Results,
		Notifier:     notify.NewFanout(storeSink, dispatcher),
		Clock:        time.Now,
		Logger:       logger,
		Metrics:      recorder,
		Workers:      appConfig.SyncWorkers,
		Timeout:      appConfig.SyncTimeout,
	})
	if err != nil {
		return nil, err
	}

	auditor, err := results.NewAuditor(results.AuditorConfig{
		Competitions: repositories.Competitions,
		Submissions:  repositories.Submissions,
		Results:      repositories.Results,
		Logger:       logger,
		Metrics:      recorder,
	})
	if err != nil {
		return nil, err
	}

	pointsService, err := points.NewService(points.ServiceConfig{
		Submissions: repositories.Submissions,
		Ratings:     repositories.Ratings,
		Logger:      logger,
		Metrics:     recorder,
		Workers:     appConfig.SyncWorkers,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		config:       appConfig,
		logger:       logger,
		sqlDB:        sqlDB,
		store:        repositories,
		registry:     registry,
		metrics:      recorder,
		dispatcher:   dispatcher,
		synchronizer: synchronizer,
		auditor:      auditor,
		points:       pointsService,
	}, nil
}

func (r *services) sessionValidator() (*auth.SessionValidator, error) {
	return auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(r.config.AuthSigningSecret),
		Issuer:        r.config.AuthIssuer,
		CookieName:    r.config.AuthCookieName,
	})
}

func (r *services) Close() {
	_ = r.logger.Sync()
	_ = r.sqlDB.Close()
}
