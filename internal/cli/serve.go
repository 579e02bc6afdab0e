package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/netcanvas/netcanvas/internal/config"
	"github.com/netcanvas/netcanvas/internal/server"
	"github.com/netcanvas/netcanvas/pkg/collab"
	"github.com/netcanvas/netcanvas/pkg/store"
	mongostore "github.com/netcanvas/netcanvas/pkg/store/mongo"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// server receives a stop signal.
const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command that runs the HTTP server.
func (c *CLI) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collaborative topology server",
		Long: `Run the collaborative topology server.

Configuration is read from a TOML file (see the config package search order)
with NETCANVAS_* environment overrides. Without a MongoDB URI the server
keeps configurations in memory; without a Redis address it skips the
cross-instance event relay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
				c.SetLogLevel(level)
			}
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg config.Config) error {
	st, err := c.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		st.Close(closeCtx)
	}()

	registry := collab.NewRegistry()

	var relay collab.Relay
	if cfg.Redis.Addr != "" {
		r, err := collab.NewRedisRelay(ctx, cfg.Redis.Addr, c.Logger)
		if err != nil {
			return fmt.Errorf("connect relay: %w", err)
		}
		defer r.Close()
		relay = r
	}

	broadcaster := collab.NewBroadcaster(registry, relay, c.Logger)
	if r, ok := relay.(*collab.RedisRelay); ok {
		go r.Run(ctx, broadcaster)
		c.Logger.Info("event relay connected", "addr", cfg.Redis.Addr)
	}

	srv := server.New(st, broadcaster, c.Logger)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("server listening", "addr", cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return context.Canceled
}

// openStore selects the persistence backend from configuration.
func (c *CLI) openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Mongo.URI == "" {
		c.Logger.Warn("no mongodb configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	st, err := mongostore.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	c.Logger.Info("store connected", "database", cfg.Mongo.Database)
	return st, nil
}
