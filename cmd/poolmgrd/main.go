package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redispoolmgr/poolmgr/pkg/applog"
	"github.com/redispoolmgr/poolmgr/pkg/pool"
	"github.com/redispoolmgr/poolmgr/pkg/poolconfig"
	"github.com/redispoolmgr/poolmgr/pkg/poolmetrics"
)

func main() {
	var configFile string
	var addr string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.StringVar(&addr, "addr", ":8080", "Address to serve /healthz, /metrics, and /status on")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("POOLMGR_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		}
	}

	cfg, err := poolconfig.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	sink := poolmetrics.NewPrometheus(registry)

	registryManager := pool.NewRegistry(cfg, logger, sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, url := range cfg.StartupNodes {
		addCtx, cancel := context.WithTimeout(ctx, cfg.ReadinessTimeout)
		err := registryManager.AddNode(addCtx, url)
		cancel()
		if err != nil {
			logger.WithError(err).WithField("url", url).Error("failed to add startup node")
			continue
		}
		logger.WithField("url", url).Info("node added")
	}

	registryManager.StartLoops()
	defer registryManager.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := registryManager.FetchPoolStatus()
		healthy := false
		for _, node := range report.Nodes {
			if node.HealthyPools > 0 {
				healthy = true
				break
			}
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		report := registryManager.FetchPoolStatus()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("poolmgrd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
