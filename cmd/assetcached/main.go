// Command assetcached serves a site through a versioned asset cache: it
// installs the configured manifest, activates it and answers every request
// cache-first, rolling to a new version when the config file changes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/unkn0wn-root/assetcache"
	asynchook "github.com/unkn0wn-root/assetcache/hooks/async"
	"github.com/unkn0wn-root/assetcache/internal/config"
	"github.com/unkn0wn-root/assetcache/internal/host"
	"github.com/unkn0wn-root/assetcache/internal/metrics"
	"github.com/unkn0wn-root/assetcache/internal/server"
	lr "github.com/unkn0wn-root/assetcache/log/logrus"
	"github.com/unkn0wn-root/assetcache/loghooks"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "path to the YAML configuration file")
	envPrefix := pflag.String("env-prefix", "ASSETCACHE", "environment variable prefix")
	listen := pflag.StringP("listen", "l", "", "listen address, overrides server.listen")
	verbose := pflag.BoolP("verbose", "v", false, "debug logging and per-event lifecycle logs")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}
	loader := config.NewLoader(*envPrefix, files...)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	logger := newLogger(cfg.Server.Logging, *verbose)
	if err := run(ctx, loader, cfg, logger, *verbose); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("assetcached terminated unexpectedly")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, loader *config.Loader, cfg config.Config, logger *log.Logger, verbose bool) error {
	entry := logger.WithField("component", "assetcached")

	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	sinks := assetcache.MultiHooks{recorder}
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		sinks = append(sinks, loghooks.New(slog.New(handler), loghooks.Options{ResolveEvery: 100}))
	}
	hooks := asynchook.New(sinks, 2, 1024)
	defer hooks.Close()

	st, err := buildStore(ctx, cfg.Store, hooks, entry)
	if err != nil {
		return errors.Wrap(err, "build store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			entry.WithError(err).Warn("store close failed")
		}
	}()
	entry.WithFields(log.Fields{"backend": cfg.Store.Backend, "codec": cfg.Store.Codec}).Info("store ready")

	h, err := host.New(host.Options{
		Store:      st,
		Fetcher:    &http.Client{Timeout: 30 * time.Second},
		Logger:     lr.New(logger),
		Hooks:      hooks,
		OnActivate: recorder.SetActive,
	}, cfg.Cache)
	if err != nil {
		return err
	}

	// a failed first deploy leaves the proxy passing through; the next
	// config change retries it
	if _, err := h.Deploy(ctx); err != nil {
		entry.WithError(err).Error("initial deploy failed, serving from network")
	}

	if len(loader.Files()) > 0 {
		w, err := loader.Watch(ctx, func(next config.Config) {
			changed, err := h.Reload(ctx, next.Cache)
			switch {
			case err != nil:
				entry.WithError(err).Error("reload failed, previous version keeps serving")
			case changed:
				entry.WithField("generation", next.Cache.Generation).Info("reloaded cache version")
			}
		}, func(err error) {
			entry.WithError(err).Warn("config watcher")
		})
		if err != nil {
			entry.WithError(err).Warn("config watch disabled")
		} else {
			defer w.Stop()
		}
	}

	srv, err := server.New(cfg.Server.Listen, server.NewRouter(h, recorder.Handler(), entry), entry)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func newLogger(cfg config.LoggingConfig, verbose bool) *log.Logger {
	l := log.New()
	l.SetOutput(os.Stderr)
	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	l.SetLevel(level)
	return l
}
