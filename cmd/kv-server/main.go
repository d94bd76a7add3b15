package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/loganszeto/respkv/internal/config"
	"github.com/loganszeto/respkv/internal/gateway"
	"github.com/loganszeto/respkv/internal/logging"
	"github.com/loganszeto/respkv/internal/persistence"
	"github.com/loganszeto/respkv/internal/server"
	"github.com/loganszeto/respkv/internal/stats"
	"github.com/loganszeto/respkv/internal/store"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kv-server:", err)
		os.Exit(1)
	}
}

// flagKeys maps command-line flags to config keys. Only flags set on the
// command line override the file and environment.
var flagKeys = map[string]string{
	"dir":             "dir",
	"dbfilename":      "dbfilename",
	"addr":            "addr",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"gateway-addr":    "gateway.addr",
	"snapshot-bucket": "snapshot.bucket",
	"snapshot-object": "snapshot.object",
	"rate-limit":      "ratelimit",
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kv-server",
		Usage: "RESP key-value server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"RESPKV_CONFIG"}},
			&cli.StringFlag{Name: "dir", Usage: "snapshot directory", Value: config.DefaultDir},
			&cli.StringFlag{Name: "dbfilename", Usage: "snapshot file name", Value: config.DefaultDBFilename},
			&cli.StringFlag{Name: "addr", Usage: "listen address", Value: config.DefaultAddr},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error", Value: "info"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json", Value: "text"},
			&cli.StringFlag{Name: "gateway-addr", Usage: "WebSocket and metrics listen address (empty disables)"},
			&cli.StringFlag{Name: "snapshot-bucket", Usage: "GCS bucket to fetch the snapshot from at startup"},
			&cli.StringFlag{Name: "snapshot-object", Usage: "GCS object name (defaults to dbfilename)"},
			&cli.IntFlag{Name: "rate-limit", Usage: "commands per second per connection (0 disables)"},
		},
		Action: func(c *cli.Context) error {
			loader := config.NewLoader(
				config.WithFile(c.String("config")),
				config.WithOverrides(overrides(c)),
			)
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, loader)
		},
	}
}

func overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		if flag == "rate-limit" {
			out[key] = c.Int(flag)
			continue
		}
		out[key] = c.String(flag)
	}
	return out
}

func run(ctx context.Context, cfg *config.Config, loader *config.Loader) error {
	logger := logging.New("respkv", logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.Snapshot.Bucket != "" {
		if err := fetchSnapshot(ctx, cfg, logger); err != nil {
			return err
		}
	}

	metrics := stats.New()
	st := store.NewStore(store.Options{})
	d := server.NewDispatcher(st, persistence.NewSnapshotReader(nil),
		server.Params{Dir: cfg.Dir, DBFilename: cfg.DBFilename},
		metrics, logger.Named("server"))

	if path := loader.FilePath(); path != "" {
		if err := watchLogLevel(ctx, path, loader, logger); err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	errCh := make(chan error, 2)
	if cfg.Gateway.Addr != "" {
		gw := gateway.New(d, metrics, logger.Named("gateway")).NewHTTPServer(cfg.Gateway.Addr)
		go func() {
			logger.Info("gateway listening", "addr", cfg.Gateway.Addr)
			if err := gw.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("gateway: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = gw.Shutdown(shutdownCtx)
		}()
	}

	srv := server.New(cfg.Addr, d, metrics,
		server.WithRateLimit(cfg.RateLimit),
		server.WithLogger(logger.Named("server")))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
		// Wait for the listener goroutine to drain connections.
		return <-errCh
	case err := <-errCh:
		cancel()
		return err
	}
}

func fetchSnapshot(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	fetcher, err := persistence.NewGCSFetcher(ctx, cfg.Snapshot.Bucket, cfg.SnapshotObject())
	if err != nil {
		return fmt.Errorf("gcs client: %w", err)
	}
	defer fetcher.Close()

	path := persistence.SnapshotPath(cfg.Dir, cfg.DBFilename)
	fetched, err := fetcher.Fetch(ctx, path)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	logger.Info("snapshot fetch", "bucket", cfg.Snapshot.Bucket, "object", cfg.SnapshotObject(), "path", path, "fetched", fetched)
	return nil
}

// watchLogLevel reloads the config file on change and applies its log
// level. Other settings need a restart.
func watchLogLevel(ctx context.Context, path string, loader *config.Loader, logger hclog.Logger) error {
	w, err := config.NewWatcher(path, logger.Named("config"))
	if err != nil {
		return err
	}
	w.OnChange(func(string) {
		cfg, err := loader.Load()
		if err != nil {
			logger.Warn("config reload failed", "error", err)
			return
		}
		logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
		logger.Info("log level reloaded", "level", cfg.Log.Level)
	})
	go w.Run(ctx)
	return nil
}
