package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edvin/envdash/internal/api"
	"github.com/edvin/envdash/internal/config"
	"github.com/edvin/envdash/internal/core"
	"github.com/edvin/envdash/internal/erp"
	"github.com/edvin/envdash/internal/logging"
	"github.com/edvin/envdash/internal/metrics"
	"github.com/edvin/envdash/internal/poller"
	"github.com/edvin/envdash/internal/prober"
	"github.com/edvin/envdash/internal/pullstore"
	"github.com/edvin/envdash/internal/residency"
	"github.com/edvin/envdash/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	tlsConfig, err := cfg.ServerTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load TLS config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resident := residency.Load(cfg.ResidentHostingMap, logger)
	store := pullstore.New(cfg.PullTimestampsFile, logger)

	probe := prober.New(prober.Options{
		DevHostSuffix:  cfg.DevHostSuffix,
		MainSiteDomain: cfg.MainSiteDomain,
		Timeout:        cfg.ProbeTimeout,
		MaxRedirects:   cfg.ProbeMaxRedirects,
	}, logger)
	orch := validation.New(probe, validation.Options{
		Cooldown:    cfg.ValidationCooldown,
		BaseContext: ctx,
	}, logger)
	polls := poller.New(core.NewEnvironmentService(orch, resident), poller.Options{
		Interval:     cfg.PollInterval,
		StableWindow: cfg.PollStableWindow,
		MaxDuration:  cfg.PollMaxDuration,
		BaseContext:  ctx,
	}, logger)

	services := core.NewServices(core.Deps{
		Vendor:      erp.NewCustomerClient(cfg.VendorAPIURL, cfg.VendorAPIToken, cfg.VendorAPITimeout),
		Backup:      erp.NewBackupClient(cfg.BackupAPIURL, cfg.BackupAPIPassword, cfg.BackupTimeout),
		Residency:   resident,
		Timestamps:  store,
		Validator:   orch,
		Polls:       polls,
		ExcludedIDs: cfg.ExcludedCustomerIDs,
		Logger:      logger,
	})

	srv := api.NewServer(logger, cfg, services, api.ReadyCheck{
		Name:  "timestamps",
		Check: func(context.Context) error { return store.Check() },
	})

	metricsServer := metrics.Start(cfg.MetricsListenAddr, logger)

	httpServer := &http.Server{
		Addr:        cfg.HTTPListenAddr,
		Handler:     srv,
		TLSConfig:   tlsConfig,
		ReadTimeout: 15 * time.Second,
		// Pull requests wait on the backup service.
		WriteTimeout: cfg.BackupTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPListenAddr).
			Bool("tls", tlsConfig != nil).
			Int("resident_domains", resident.Len()).
			Msg("starting dashboard API server")
		var err error
		if tlsConfig != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	cancel()
	polls.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	httpServer.Shutdown(shutdownCtx)
}
