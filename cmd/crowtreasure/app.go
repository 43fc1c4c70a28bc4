package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kalambet/crowtreasure/internal/chest"
	"github.com/kalambet/crowtreasure/internal/config"
	"github.com/kalambet/crowtreasure/internal/generator"
	"github.com/kalambet/crowtreasure/internal/logging"
	"github.com/kalambet/crowtreasure/internal/metrics"
	"github.com/kalambet/crowtreasure/internal/proxy"
	"github.com/kalambet/crowtreasure/internal/storage"
)

var newID = uuid.NewString

// app bundles what every command needs: config, the open database, the
// loaded chest and a generator counting its outcomes on reg.
type app struct {
	cfg      config.Config
	db       *storage.Store
	chest    *chest.Store
	gen      *generator.Generator
	reg      *prometheus.Registry
	closeLog func() error
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// openApp loads config, configures logging and opens storage. console sends
// logs to stderr instead of the log file.
func openApp(console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	closeLog, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: console,
	})
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	gen := generator.New(newRelay(cfg), cfg.Relay.Model, cfg.Relay.Temperature).
		WithMetrics(metrics.New(reg))

	return &app{
		cfg:      cfg,
		db:       db,
		chest:    chest.Load(db),
		gen:      gen,
		reg:      reg,
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
	a.closeLog()
}

// newRelay picks the generator's transport: the relay endpoint, or the
// upstream API directly when a key is available locally.
func newRelay(cfg config.Config) generator.Relay {
	if cfg.Relay.Backend == "direct" {
		return proxy.NewDirectClient(apiKey(cfg), cfg.Upstream.BaseURL, cfg.Relay.Timeout)
	}
	return proxy.NewClient(cfg.Relay.URL, cfg.Relay.Timeout).WithToken(cfg.Relay.Token)
}

// apiKey prefers the live environment so a key exported after startup is used.
func apiKey(cfg config.Config) string {
	if k := os.Getenv("DEEPSEEK_API_KEY"); k != "" {
		return k
	}
	return cfg.Upstream.APIKey
}
