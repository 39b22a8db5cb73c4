package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ben-ranford/bundlegraph/internal/config"
	"github.com/ben-ranford/bundlegraph/internal/lang/js"
	"github.com/ben-ranford/bundlegraph/internal/noderesolve"
	"github.com/ben-ranford/bundlegraph/internal/registry"
	"github.com/ben-ranford/bundlegraph/internal/report"
	"github.com/ben-ranford/bundlegraph/internal/resolve"
	"github.com/ben-ranford/bundlegraph/internal/shims"
	"github.com/ben-ranford/bundlegraph/internal/source"
	"github.com/ben-ranford/bundlegraph/internal/workspace"
)

var ErrUnknownMode = errors.New("unknown mode")

type App struct {
	Formatter report.Formatter
	// LogOut receives diagnostic logs. Nil discards them.
	LogOut io.Writer
	Now    func() time.Time
}

func New(logOut io.Writer) *App {
	return &App{
		Formatter: report.NewFormatter(),
		LogOut:    logOut,
		Now:       time.Now,
	}
}

func (a *App) Execute(ctx context.Context, req Request) (string, error) {
	switch req.Mode {
	case ModeResolve:
		return a.executeResolve(ctx, req)
	case ModeRegistry:
		return a.executeRegistry(ctx, req)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMode, req.Mode)
	}
}

func (a *App) executeResolve(ctx context.Context, req Request) (string, error) {
	cfg, configPath, logger, err := a.prepare(req)
	if err != nil {
		return "", err
	}
	entries, err := workspace.SelectEntries(cfg.BasePath, req.Entries, cfg.Entrypoints)
	if err != nil {
		return "", err
	}

	cache, err := startRegistry(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	// The background listing must not outlive the session.
	defer cache.Build(ctx)

	lookup := noderesolve.New()
	var modules map[string]string
	if cfg.AddNodeGlobals {
		modules, err = shims.Resolve(ctx, lookup, cfg.BasePath, noderesolve.Options{
			Extensions:      cfg.Extensions,
			ModuleDirectory: cfg.Directories,
		}, logger)
		if err != nil {
			return "", err
		}
	}

	filenames := resolve.NewFilenameResolver(cache, lookup, resolve.FilenameConfig{
		BasePath:    cfg.BasePath,
		Alias:       cfg.Alias,
		Extensions:  cfg.Extensions,
		Directories: cfg.Directories,
		Modules:     modules,
	}, logger)
	reader := source.NewReader(js.NewParser(), source.Options{
		Ignore:         cfg.Ignore,
		NoParse:        cfg.NoParse,
		ValidateSyntax: cfg.ValidateSyntax,
		MaxBytes:       cfg.MaxSourceBytes,
	}, logger)
	resolver := resolve.New(filenames, reader, js.NewDependencyWalker(), resolve.Config{
		Exclude:            cfg.Exclude,
		MaxConcurrentReads: cfg.MaxConcurrentReads,
	}, logger)

	started := time.Now()
	items, buffer, err := resolver.ResolveEntries(ctx, entries)
	if err != nil {
		return "", err
	}
	logger.Info("resolved dependency graph", "entries", len(items), "modules", buffer.Len(), "duration", time.Since(started))

	reportData := report.FromGraph(cfg.BasePath, items, buffer.Items(), a.now())
	reportData.ConfigPath = configPath
	return a.Formatter.Format(reportData, req.Format)
}

func (a *App) executeRegistry(ctx context.Context, req Request) (string, error) {
	cfg, configPath, logger, err := a.prepare(req)
	if err != nil {
		return "", err
	}
	cache, err := startRegistry(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	cache.Build(ctx)

	reportData := report.FromRegistry(cfg.BasePath, cache.Snapshot(), a.now())
	reportData.ConfigPath = configPath
	return a.Formatter.Format(reportData, req.Format)
}

// prepare loads the configuration, applies the request overrides and builds
// the session logger.
func (a *App) prepare(req Request) (config.Config, string, *slog.Logger, error) {
	basePath, err := workspace.NormalizeBasePath(req.BasePath)
	if err != nil {
		return config.Config{}, "", nil, err
	}
	cfg, configPath, err := config.Load(basePath, req.ConfigPath)
	if err != nil {
		return config.Config{}, "", nil, err
	}
	if cfg.BasePath != basePath {
		if cfg.BasePath, err = workspace.NormalizeBasePath(cfg.BasePath); err != nil {
			return config.Config{}, "", nil, err
		}
	}
	cfg.MergeExclude(req.Exclude)
	if level := strings.TrimSpace(req.LogLevel); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(req.LogFormat); format != "" {
		cfg.LogFormat = format
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, a.LogOut)
	if configPath != "" {
		logger.Debug("loaded config", "path", configPath)
	}
	return cfg, configPath, logger, nil
}

func startRegistry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*registry.Cache, error) {
	lister, err := registry.NewLister(registry.Mode(cfg.Registry), cfg.BasePath, logger)
	if err != nil {
		return nil, err
	}
	cache := registry.NewCache(lister, logger)
	cache.Start(ctx)
	return cache, nil
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
