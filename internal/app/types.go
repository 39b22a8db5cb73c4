package app

import (
	"github.com/ben-ranford/bundlegraph/internal/report"
)

type Mode string

const (
	ModeResolve  Mode = "resolve"
	ModeRegistry Mode = "registry"
)

type Request struct {
	Mode       Mode
	BasePath   string
	ConfigPath string
	Format     report.Format
	// Entries are entry files, relative to the base path unless absolute.
	Entries []string
	// Exclude is merged into the configured bundlerOptions.exclude list.
	Exclude   []string
	LogLevel  string
	LogFormat string
}

func DefaultRequest() Request {
	return Request{
		Mode:     ModeResolve,
		BasePath: ".",
		Format:   report.FormatTable,
	}
}
