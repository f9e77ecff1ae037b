package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/nginv/internal/config"
	"github.com/vburojevic/nginv/internal/metrics"
	"github.com/vburojevic/nginv/internal/monitor"
	"github.com/vburojevic/nginv/internal/output"
	"github.com/vburojevic/nginv/internal/server"
	"github.com/vburojevic/nginv/internal/tmux"
	"github.com/vburojevic/nginv/internal/tui"
)

// WatchCmd tails every configured log file and shows live statistics
type WatchCmd struct {
	Interval time.Duration `short:"i" help:"Refresh interval for the dashboard or reports (default from config: 10s)"`
	SitesDir string        `short:"d" help:"nginx sites directory to scan (default from config: /etc/nginx/sites-enabled)"`
	Files    []string      `short:"f" name:"files" help:"Log files to monitor instead of discovery (repeatable)"`
	Poll     time.Duration `help:"How often each file is checked for new lines (default from config: 250ms)"`
	Listen   string        `help:"Serve /api/v1/snapshot, /metrics and /healthz on this address"`
	Tmux     bool          `help:"Write text/ndjson reports into a tmux session"`
	Session  string        `help:"Custom tmux session name (default: nginv)"`
	LogFile  string        `help:"Write diagnostics as JSON lines to this file"`

	clock clock.Clock
}

// applyWatchDefaults fills unset flags from the configuration
func applyWatchDefaults(cfg *config.Config, c *WatchCmd) {
	if cfg == nil {
		cfg = config.Default()
	}
	if c.Interval <= 0 {
		c.Interval = cfg.RefreshInterval
	}
	if c.Poll <= 0 {
		c.Poll = cfg.PollInterval
	}
	if c.SitesDir == "" {
		c.SitesDir = cfg.SitesDir
	}
	if c.Listen == "" {
		c.Listen = cfg.Listen
	}
	if c.LogFile == "" {
		c.LogFile = cfg.LogFile
	}
	if c.Session == "" {
		c.Session = tmux.DefaultSessionName
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, globals)
}

func (c *WatchCmd) run(ctx context.Context, globals *Globals) error {
	applyWatchDefaults(globals.Config, c)
	format := resolveFormat(globals)
	globals.Debug("output format: %s", format)

	logger, err := newLogger(globals.Config.LogLevel, c.LogFile, globals.Verbose, globals.Quiet, format == "tui")
	if err != nil {
		return outputErrorCommon(globals, "LOGGER_FAILED", err, "")
	}
	defer func() { _ = logger.Sync() }()

	sites, from, err := resolveSites(c.Files, globals.Config.Sites, c.SitesDir, logger)
	if err != nil {
		return sitesError(globals, err, c.SitesDir)
	}
	logger.Info("sites resolved", zap.Int("sites", len(sites)), zap.String("from", string(from)))

	mon := monitor.New(sites, monitor.Options{
		PollInterval: c.Poll,
		Clock:        c.clock,
		Logger:       logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if err := mon.Start(gctx); err != nil {
		return outputErrorCommon(globals, "MONITOR_FAILED", err, "")
	}
	defer func() { _ = mon.Stop() }()

	if c.Listen != "" {
		srv := server.New(mon, metrics.NewRegistry(mon), logger)
		g.Go(func() error {
			if err := srv.Run(gctx, c.Listen); err != nil {
				return outputErrorCommon(globals, "LISTEN_FAILED", err, hintForListen(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		if format == "tui" {
			return tui.Run(gctx, mon, c.Interval)
		}
		return c.report(gctx, globals, mon, format, len(sites), countFiles(sites))
	})

	return g.Wait()
}

// report prints one snapshot per refresh interval until ctx is cancelled
func (c *WatchCmd) report(ctx context.Context, globals *Globals, source tui.Source, format string, sites, files int) error {
	var out io.Writer = globals.Stdout
	if c.Tmux {
		om := tmux.NewOutputManager(true, &tmux.Config{SessionName: c.Session})
		globals.Debug("report output: %s", om.ModeString())
		if om.IsTmuxMode() {
			out = om.Writer()
			defer func() { _ = om.Cleanup() }()
			if err := c.announceTmux(globals, om, sites); err != nil {
				return err
			}
		} else {
			emitWarning(globals, fmt.Sprintf("tmux unavailable (%v), falling back to stdout", om.FallbackReason()))
		}
	}

	emitter := output.NewEmitter(out, format)
	if !globals.Quiet {
		msg := fmt.Sprintf("monitoring %d sites (%d files), refresh %s", sites, files, output.FormatDuration(c.Interval))
		if err := emitter.Info(msg, sites, files, c.Interval); err != nil {
			return err
		}
	}

	ticker := c.clock.Ticker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := emitter.Snapshot(source.Tick()); err != nil {
				return err
			}
		}
	}
}

func (c *WatchCmd) announceTmux(globals *Globals, om *tmux.OutputManager, sites int) error {
	if mgr := om.TmuxManager(); mgr != nil {
		if err := mgr.ClearPaneWithBanner(fmt.Sprintf("%d sites", sites), c.clock.Now()); err != nil {
			emitWarning(globals, fmt.Sprintf("failed to clear tmux pane: %v", err))
		}
	}

	if globals.JSON() {
		return output.NewNDJSONWriter(globals.Stdout).WriteTmux(om.SessionName(), om.AttachCommand())
	}
	if _, err := fmt.Fprintf(globals.Stdout, "Tmux session: %s\n", om.SessionName()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(globals.Stdout, "Attach with: %s\n", om.AttachCommand())
	return err
}
