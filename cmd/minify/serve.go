package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tdewolff/jsmin"
	"github.com/tdewolff/jsmin/cache"
	"github.com/tdewolff/jsmin/serve"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type serveOptions struct {
	Addr      string
	Groups    string
	Root      string
	NoFiles   bool
	CacheDir  string
	Memcached []string
	MaxAge    int
}

// newLogger returns the logger of the command, it writes to stderr at a level set by --verbose. Command line
// runs log in console format without timestamps, the server logs JSON.
func newLogger(quiet bool, verbose int, console bool) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	if 1 < verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	} else if 0 < verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	if console {
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = ""
		cfg.EncoderConfig.CallerKey = ""
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
		cfg.Sampling = nil
	}
	return cfg.Build()
}

func newCache(o serveOptions, logger *zap.Logger) (cache.Cache, error) {
	switch {
	case 0 < len(o.Memcached) && o.CacheDir != "":
		return nil, errors.New("--cache-dir cannot be used together with --memcached")
	case 0 < len(o.Memcached):
		logger.Info("cache in memcached", zap.Strings("servers", o.Memcached))
		return cache.NewMemcached(memcache.New(o.Memcached...), 0), nil
	case o.CacheDir != "":
		if err := os.MkdirAll(o.CacheDir, 0777); err != nil {
			return nil, err
		}
		logger.Info("cache in directory", zap.String("dir", o.CacheDir))
		return cache.NewFile(o.CacheDir, cache.FileOptions{Locking: true, Logger: logger}), nil
	}
	logger.Info("caching disabled")
	return cache.Null{}, nil
}

// newServer returns the HTTP server for groups and files, with metrics exposed on /metrics.
func newServer(o serveOptions, m *jsmin.M, logger *zap.Logger) (*http.Server, error) {
	groups := serve.Groups{}
	if o.Groups != "" {
		var err error
		if groups, err = serve.LoadGroups(o.Groups, o.Root); err != nil {
			return nil, err
		} else if _, ok := groups["metrics"]; ok {
			return nil, errors.New("group name metrics is reserved for /metrics")
		}
		logger.Info("serve groups", zap.Strings("groups", groups.Names()))
	} else if o.NoFiles {
		return nil, errors.New("--no-files requires --groups")
	}

	c, err := newCache(o, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", serve.NewHandler(serve.Options{
		Root:       o.Root,
		Groups:     groups,
		AllowFiles: !o.NoFiles,
		Cache:      c,
		Minifier:   m,
		MaxAge:     time.Duration(o.MaxAge) * time.Second,
		Logger:     logger,
		Metrics:    serve.NewMetrics(reg),
	}))
	return &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// runServer serves until interrupted and then shuts down gracefully.
func runServer(o serveOptions, m *jsmin.M, logger *zap.Logger) error {
	srv, err := newServer(o, m, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		timeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(timeout)
	}()

	logger.Info("serve", zap.String("addr", o.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdown
}
