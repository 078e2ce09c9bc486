package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func runServer(ctx context.Context) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	validator, err := svc.sessionValidator()
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator:  validator,
		Synchronizer:      svc.synchronizer,
		Auditor:           svc.auditor,
		Points:            svc.points,
		Ratings:           svc.store.Ratings,
		Dispatcher:        svc.dispatcher,
		MetricsHandler:    promhttp.HandlerFor(svc.registry, promhttp.HandlerOpts{}),
		SyncRatePerMinute: svc.config.SyncRatePerMinute,
		Logger:            svc.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              svc.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		svc.logger.Info("server starting", zap.String("address", svc.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
