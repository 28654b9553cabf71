package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/packler/internal/build"
	"git.home.luguber.info/inful/packler/internal/component"
	"git.home.luguber.info/inful/packler/internal/config"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/metrics"
	"git.home.luguber.info/inful/packler/internal/retry"
	"git.home.luguber.info/inful/packler/internal/tools"
	"git.home.luguber.info/inful/packler/internal/workspace"
)

// Global carries process-wide state into every command.
type Global struct {
	// Ctx is cancelled on SIGINT/SIGTERM.
	Ctx context.Context
}

func (g *Global) context() context.Context {
	if g == nil || g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

// CLI definition & global flags.
type CLI struct {
	Config     string           `short:"c" help:"Configuration file path" default:"packler.yaml"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`
	Components []string         `short:"C" name:"components" help:"Components to act on: assets, backend, frontend[:name]. Repeatable."`

	Build  BuildCmd  `cmd:"" help:"Fingerprint images and compile stylesheets into the output directory"`
	Clean  CleanCmd  `cmd:"" help:"Remove build output"`
	Deploy DeployCmd `cmd:"" help:"Build and upload assets to the configured bucket"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; set up logging once. The level can be
// refined later from the configuration file.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	configureLogging(config.NormalizeLogLevel(os.Getenv("PACKLER_LOG_LEVEL")), config.LogFormatText, c.Verbose)
	return nil
}

func configureLogging(level config.LogLevel, format config.LogFormat, verbose bool) {
	lvl := level.SlogLevel()
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// runtime is everything a command needs once configuration is resolved.
type runtime struct {
	cfg        *config.Config
	ws         workspace.Info
	paths      config.Paths
	components []component.Component
	recorder   metrics.Recorder
	registry   *prom.Registry
	lock       *workspace.Lock
}

// setup loads configuration, detects the workspace and takes the output lock.
// Callers must call close.
func (c *CLI) setup() (*runtime, error) {
	cfg, err := config.LoadOrDefault(c.Config, c.Config == config.DefaultConfigFile)
	if err != nil {
		return nil, err
	}
	if os.Getenv("PACKLER_LOG_LEVEL") == "" {
		configureLogging(cfg.Logging.Level, cfg.Logging.Format, c.Verbose)
	}

	ws, err := workspace.Detect(filepath.Dir(c.Config))
	if err != nil {
		return nil, err
	}

	components, err := component.ParseAll(c.Components, cfg.Components.Default)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:        cfg,
		ws:         ws,
		paths:      config.Resolve(cfg, ws),
		components: components,
		recorder:   metrics.NoopRecorder{},
	}
	if cfg.Metrics.Textfile != "" {
		rt.registry = prom.NewRegistry()
		rt.recorder = metrics.NewPrometheusRecorder(rt.registry)
	}

	lock, err := workspace.Acquire(rt.paths.LockFile)
	if err != nil {
		return nil, err
	}
	rt.lock = lock
	slog.Debug("Workspace resolved",
		logfields.Path(ws.Root),
		slog.String("module", ws.ModulePath),
		slog.String("dist", rt.paths.DistRoot))
	return rt, nil
}

func (rt *runtime) close() {
	if err := rt.lock.Release(); err != nil {
		slog.Warn("Could not release output lock", logfields.Error(err))
	}
}

// orchestrator wires the build stages for this workspace.
func (rt *runtime) orchestrator() *build.Orchestrator {
	policy := retry.FromConfig(rt.cfg.Retry)
	resolver := tools.NewResolver(rt.cfg.Sass.Binary, rt.cfg.Sass.CacheDir, policy)
	o := build.NewFromConfig(rt.cfg, rt.paths, resolver, rt.recorder)
	if rt.registry != nil {
		o.OnComplete(func(*build.BuildResult) { rt.flushMetrics() })
	}
	return o
}

func (rt *runtime) flushMetrics() {
	if err := metrics.WriteTextfile(rt.registry, rt.cfg.Metrics.Textfile); err != nil {
		slog.Warn("Could not write metrics textfile", logfields.Error(err))
	}
}

// dispatch runs action for every selected component, stopping at the first
// error.
func (rt *runtime) dispatch(ctx context.Context, action component.Action, assets component.Handler) error {
	handlers := map[component.Action]component.Handler{action: assets}
	for _, c := range rt.components {
		slog.Debug("Running action", logfields.Component(c.String()), slog.String("action", string(action)))
		if err := component.Dispatch(ctx, c, action, handlers); err != nil {
			return err
		}
	}
	return nil
}
