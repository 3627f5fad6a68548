package cli

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/matgreaves/run"

	"github.com/SmitUplenchwar2687/wsreplay/internal/config"
	"github.com/SmitUplenchwar2687/wsreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/wsreplay/internal/server"
)

// newCollector returns a metrics collector when a metrics address is
// configured, and nil otherwise. A nil collector records nothing.
func newCollector(cfg config.Config) *metrics.Collector {
	if cfg.Server.MetricsAddr == "" {
		return nil
	}
	return metrics.New()
}

// serve runs the dispatcher, and the metrics listener if configured, until
// SIGINT or SIGTERM.
func serve(ctx context.Context, cfg config.Config, h server.Handler, m *metrics.Collector) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group := run.Group{
		"dispatcher": server.New(cfg.Addr(), h).Runner(),
	}
	if m != nil {
		group["metrics"] = server.StatusRunner(cfg.Server.MetricsAddr, server.NewStatusHandler(m.Handler()))
	}

	err := group.Run(ctx)
	if ctx.Err() != nil {
		log.Println("shut down")
		return nil
	}
	if err == nil {
		err = errors.New("server exited unexpectedly")
	}
	return err
}
