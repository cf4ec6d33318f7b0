package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fracmarket/config"
	"fracmarket/core/state"
	"fracmarket/native/marketplace"
	"fracmarket/observability/logging"
	"fracmarket/rpc"
	"fracmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FRACMARKET_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	assets := state.NewAssetBook(manager)
	currencies := state.NewCurrencyBook(manager)
	commissions := state.NewCommissionBook(manager)
	access := state.NewAccessBook(manager)

	engine := marketplace.NewEngine(marketplace.NewLedger(manager))
	engine.SetAssetLedger(assets)
	engine.SetCurrencyRegistry(currencies)
	engine.SetCommissionRegistry(commissions)
	engine.SetAccessControl(access)
	engine.SetNativeRail(state.NewNativeLedger(manager))
	engine.SetTokenRail(state.NewTokenBook(manager))
	engine.SetStateTransactions(manager)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           rpc.NewServer(engine, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", slog.String("address", cfg.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server terminated", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("marketplace rpc listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("network", cfg.NetworkName),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server terminated", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("marketd stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}
