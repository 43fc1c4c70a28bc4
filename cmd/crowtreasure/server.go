package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/crowtreasure/internal/api"
	"github.com/kalambet/crowtreasure/internal/config"
	"github.com/kalambet/crowtreasure/internal/logging"
	"github.com/kalambet/crowtreasure/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the HTTP relay that holds the upstream API key",
	Long: `Run the HTTP relay that holds the upstream API key.

The relay forwards chat completion requests to the upstream model API with
the key from DEEPSEEK_API_KEY and returns the upstream status and body as is.
Requests with an empty body answer with a liveness message.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closeLog, err := logging.Setup(logging.Options{Level: cfg.Log.Level, Console: true})
		if err != nil {
			return err
		}
		defer closeLog()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runRelay(ctx, cfg)
	},
}

func newRelayServer(ctx context.Context, cfg config.Config) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewRelayHandler(api.RelayConfig{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		APIKey:          func() string { return apiKey(cfg) },
		HTTPClient:      &http.Client{},
		Metrics:         metrics.New(reg),
		Gatherer:        reg,
		AccessToken:     cfg.Relay.Token,
	})

	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
}

func runRelay(ctx context.Context, cfg config.Config) error {
	srv := newRelayServer(ctx, cfg)

	if apiKey(cfg) == "" {
		printWarning("DEEPSEEK_API_KEY is not set; requests will fail until it is")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printStep("%s relay listening on %s", versionString(), srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down relay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the treasure chest over MCP (stdio)",
	Long: `Serve the treasure chest over MCP on stdin/stdout.

With --metrics-addr the generation outcome counter is also served at
http://<addr>/metrics for as long as the MCP session lasts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		// stdout carries the protocol, so logs go to stderr.
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runMCP(ctx, a, metricsAddr)
	},
}

func init() {
	mcpCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
}

func runMCP(ctx context.Context, a *app, metricsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     a.chest,
		Generator: a.gen,
		Version:   version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The session ends when the client closes stdin; stop the metrics
		// server with it.
		defer cancel()
		log.Info().Str("version", version).Msg("MCP server started (stdio transport)")
		err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	})

	if metricsAddr != "" {
		srv := newMetricsServer(metricsAddr, a.reg)
		g.Go(func() error {
			log.Info().Str("addr", metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func newMetricsServer(addr string, g prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay and chest status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client := &http.Client{Timeout: 2 * time.Second}
		healthURL := "http://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)) + "/health"
		resp, err := client.Get(healthURL)
		switch {
		case err != nil:
			printStatus("Relay", "stopped")
		case resp.StatusCode == http.StatusOK:
			resp.Body.Close()
			printStatus("Relay", "running on %s:%d", cfg.Server.Host, cfg.Server.Port)
		default:
			resp.Body.Close()
			printStatus("Relay", "error (HTTP %d)", resp.StatusCode)
		}

		printStatus("Backend", "%s (%s)", cfg.Relay.Backend, cfg.Relay.URL)
		printStatus("Model", "%s", cfg.Relay.Model)
		if apiKey(cfg) != "" {
			printStatus("API key", "set")
		} else {
			printStatus("API key", "not set")
		}

		a, err := openApp(true)
		if err != nil {
			printStatus("Treasures", "unavailable (%v)", err)
		} else {
			printStatus("Treasures", "%d", a.chest.Len())
			a.Close()
		}
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		printStatus("Config", "%s", configFileShown())
		return nil
	},
}

func configFileShown() string {
	if configPath != "" {
		return configPath
	}
	return config.FilePath()
}
