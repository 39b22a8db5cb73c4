package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ben-ranford/bundlegraph/internal/bundle"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

const SchemaVersion = "0.1.0"

var ErrUnknownFormat = errors.New("unknown format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

type Report struct {
	SchemaVersion string          `json:"schemaVersion"`
	GeneratedAt   time.Time       `json:"generatedAt"`
	BasePath      string          `json:"basePath"`
	ConfigPath    string          `json:"configPath,omitempty"`
	Entries       []string        `json:"entries,omitempty"`
	Modules       []Module        `json:"modules,omitempty"`
	Summary       *Summary        `json:"summary,omitempty"`
	Registry      []RegistryEntry `json:"registry,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// Module is one loaded module of the graph, listed in load completion order.
type Module struct {
	ModuleName   string       `json:"moduleName"`
	Filename     string       `json:"filename"`
	Bytes        int64        `json:"bytes"`
	Parsed       bool         `json:"parsed"`
	Dependencies []Dependency `json:"dependencies"`
}

type Dependency struct {
	ModuleName string `json:"moduleName"`
	Filename   string `json:"filename,omitempty"`
	State      string `json:"state"`
}

type Summary struct {
	ModuleCount   int   `json:"moduleCount"`
	EdgeCount     int   `json:"edgeCount"`
	ExcludedCount int   `json:"excludedCount"`
	TotalBytes    int64 `json:"totalBytes"`
}

type RegistryEntry struct {
	Package  string `json:"package"`
	Filename string `json:"filename"`
}

// FromGraph builds a report from the entry items and the loaded items of one
// session.
func FromGraph(basePath string, entries, loaded []*bundle.Item, generatedAt time.Time) Report {
	report := Report{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt,
		BasePath:      basePath,
		Entries:       make([]string, 0, len(entries)),
		Modules:       make([]Module, 0, len(loaded)),
		Summary:       &Summary{},
	}
	for _, entry := range entries {
		report.Entries = append(report.Entries, entry.Filename)
		if entry.State != bundle.StateLoaded {
			report.Warnings = append(report.Warnings, fmt.Sprintf("entry %s was not loaded (%s)", displayPath(basePath, entry.Filename), entry.State))
		}
	}

	for _, item := range loaded {
		module := Module{
			ModuleName:   item.ModuleName,
			Filename:     item.Filename,
			Bytes:        int64(len(item.Source)),
			Parsed:       item.AST != nil,
			Dependencies: make([]Dependency, 0),
		}
		for _, dep := range item.Dependencies() {
			module.Dependencies = append(module.Dependencies, Dependency{
				ModuleName: dep.ModuleName,
				Filename:   dep.Filename,
				State:      dep.State.String(),
			})
			if dep.State == bundle.StateExcluded {
				report.Summary.ExcludedCount++
			}
		}
		sort.SliceStable(module.Dependencies, func(i, j int) bool {
			return module.Dependencies[i].ModuleName < module.Dependencies[j].ModuleName
		})
		report.Summary.EdgeCount += len(module.Dependencies)
		report.Summary.TotalBytes += module.Bytes
		report.Modules = append(report.Modules, module)
	}
	report.Summary.ModuleCount = len(report.Modules)
	return report
}

// FromRegistry builds a report listing a registry snapshot sorted by package.
func FromRegistry(basePath string, snapshot map[string]string, generatedAt time.Time) Report {
	report := Report{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt,
		BasePath:      basePath,
		Registry:      make([]RegistryEntry, 0, len(snapshot)),
	}
	for name, filename := range snapshot {
		report.Registry = append(report.Registry, RegistryEntry{Package: name, Filename: filename})
	}
	sort.Slice(report.Registry, func(i, j int) bool {
		return report.Registry[i].Package < report.Registry[j].Package
	})
	return report
}

func displayPath(basePath, filename string) string {
	if filename == "" {
		return "-"
	}
	if basePath == "" {
		return filename
	}
	rel, err := filepath.Rel(basePath, filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filename
	}
	return filepath.ToSlash(rel)
}
