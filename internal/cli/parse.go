package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ben-ranford/bundlegraph/internal/app"
	"github.com/ben-ranford/bundlegraph/internal/report"
)

var (
	ErrHelpRequested = errors.New("help requested")
	ErrMissingEntry  = errors.New("missing entry file")
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func ParseArgs(args []string) (app.Request, error) {
	req := app.DefaultRequest()
	if len(args) == 0 {
		return req, ErrHelpRequested
	}

	if isHelpArg(args[0]) {
		return req, ErrHelpRequested
	}

	switch args[0] {
	case "resolve":
		return parseResolve(args[1:], req)
	case "registry":
		return parseRegistry(args[1:], req)
	default:
		return req, fmt.Errorf("unknown command: %s", args[0])
	}
}

// commonFlags are shared by every command.
type commonFlags struct {
	basePath   *string
	configPath *string
	format     *string
	logLevel   *string
	logFormat  *string
}

func newFlagSet(name string, req app.Request) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs, commonFlags{
		basePath:   fs.String("base", req.BasePath, "base path"),
		configPath: fs.String("config", req.ConfigPath, "config file path"),
		format:     fs.String("format", string(req.Format), "output format"),
		logLevel:   fs.String("log-level", req.LogLevel, "log level"),
		logFormat:  fs.String("log-format", req.LogFormat, "log format"),
	}
}

func (c commonFlags) apply(req app.Request) (app.Request, error) {
	format, err := report.ParseFormat(*c.format)
	if err != nil {
		return req, err
	}
	logLevel := strings.ToLower(strings.TrimSpace(*c.logLevel))
	if logLevel != "" && !contains(logLevels, logLevel) {
		return req, fmt.Errorf("--log-level must be one of %s", strings.Join(logLevels, ", "))
	}
	logFormat := strings.ToLower(strings.TrimSpace(*c.logFormat))
	if logFormat != "" && !contains(logFormats, logFormat) {
		return req, fmt.Errorf("--log-format must be one of %s", strings.Join(logFormats, ", "))
	}

	req.BasePath = strings.TrimSpace(*c.basePath)
	req.ConfigPath = strings.TrimSpace(*c.configPath)
	req.Format = format
	req.LogLevel = logLevel
	req.LogFormat = logFormat
	return req, nil
}

func parseResolve(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs, common := newFlagSet("resolve", req)
	var exclude stringList
	fs.Var(&exclude, "exclude", "module name to exclude (repeatable)")

	if err := parseFlags(fs, args); err != nil {
		return req, err
	}

	req, err := common.apply(req)
	if err != nil {
		return req, err
	}

	entries := make([]string, 0, fs.NArg())
	for _, entry := range fs.Args() {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	if len(entries) == 0 {
		return req, ErrMissingEntry
	}

	req.Mode = app.ModeResolve
	req.Entries = entries
	req.Exclude = exclude
	return req, nil
}

func parseRegistry(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs, common := newFlagSet("registry", req)
	if err := parseFlags(fs, args); err != nil {
		return req, err
	}
	if fs.NArg() > 0 {
		return req, fmt.Errorf("unexpected arguments for registry")
	}

	req, err := common.apply(req)
	if err != nil {
		return req, err
	}
	req.Mode = app.ModeRegistry
	return req, nil
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrHelpRequested
		}
		return err
	}
	return nil
}

// stringList collects a repeatable flag; comma-separated values are split.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			*s = append(*s, trimmed)
		}
	}
	return nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, 1)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if flagNeedsValue(arg) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positionals = append(positionals, arg)
	}

	if len(positionals) == 0 {
		return flags
	}
	return append(append(flags, "--"), positionals...)
}

func flagNeedsValue(arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	switch strings.TrimLeft(arg, "-") {
	case "base", "config", "format", "exclude", "log-level", "log-format":
		return true
	default:
		return false
	}
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
