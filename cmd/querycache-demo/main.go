// Command querycache-demo runs a small users workload against SQLite through
// querycache, using the backends named in its configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/config"
	"github.com/unkn0wn-root/querycache/hooks/prom"
)

func main() {
	var (
		configFile  = flag.String("config", "", "path to YAML configuration file")
		envPrefix   = flag.String("env-prefix", config.DefaultEnvPrefix, "environment variable prefix")
		metricsAddr = flag.String("metrics", "", "serve Prometheus metrics on this address and wait for a signal")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}
	cfg, err := config.NewLoader(*envPrefix, files...).Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := run(ctx, cfg, os.Stdout, *metricsAddr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, out io.Writer, metricsAddr string) error {
	logger, err := buildLogger(cfg.Log, out)
	if err != nil {
		return err
	}

	b, err := buildBackends(ctx, cfg)
	if err != nil {
		return fmt.Errorf("backends: %w", err)
	}
	defer b.close()

	reg := prometheus.NewRegistry()
	recorder := prom.NewRecorder(reg)

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := newApp(db, cfg, b, logger, recorder)
	if err != nil {
		return err
	}
	if err := a.scenario(ctx); err != nil {
		return err
	}

	if metricsAddr == "" {
		return nil
	}
	return serveMetrics(ctx, metricsAddr, recorder, logger)
}

func serveMetrics(ctx context.Context, addr string, recorder *prom.Recorder, logger querycache.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("serving metrics", querycache.Fields{"addr": addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}
