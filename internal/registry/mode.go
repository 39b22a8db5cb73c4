package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeNone       Mode = "none"
	ModeCommand    Mode = "command"
	ModeComponents Mode = "components"
)

var ErrUnknownMode = errors.New("unknown registry mode")

// NewLister returns the lister for mode. ModeNone returns a nil lister.
func NewLister(mode Mode, baseDir string, logger *slog.Logger) (Lister, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch mode {
	case ModeNone:
		return nil, nil
	case ModeCommand:
		return Command{BaseDir: baseDir}, nil
	case ModeComponents:
		return ComponentsDir{BaseDir: baseDir, Logger: logger}, nil
	case ModeAuto, "":
		components := ComponentsDir{BaseDir: baseDir, Logger: logger}
		binary, err := ResolveBinaryPath()
		if err != nil {
			logger.Debug("bower not installed, scanning components directory", "error", err)
			return components, nil
		}
		return fallbackLister{
			primary:  Command{BaseDir: baseDir, Binary: binary},
			fallback: components,
			logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

type fallbackLister struct {
	primary  Lister
	fallback Lister
	logger   *slog.Logger
}

func (f fallbackLister) List(ctx context.Context) (map[string]Package, error) {
	packages, err := f.primary.List(ctx)
	if err == nil {
		return packages, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.logger.Debug("bower list failed, scanning components directory", "error", err)
	return f.fallback.List(ctx)
}
