// Package config loads bundlegraph settings from YAML, JSON or TOML files.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ben-ranford/bundlegraph/internal/safeio"
)

const (
	readConfigFileErrFmt = "read config file %s: %w"
	parseConfigErrFmt    = "parse config file %s: %w"
)

//go:embed schema.json
var schemaDocument string

var ErrRemovedOption = errors.New("removed configuration option")

var defaultFileNames = []string{".bundlegraph.yml", ".bundlegraph.yaml", "bundlegraph.json", "bundlegraph.toml"}

type Config struct {
	BasePath           string
	Registry           string
	MaxConcurrentReads int
	MaxSourceBytes     int64
	LogLevel           string
	LogFormat          string

	AddNodeGlobals bool
	Entrypoints    *regexp.Regexp
	Exclude        []string
	Ignore         []string
	NoParse        []string
	ValidateSyntax bool

	Alias       map[string]string
	Directories []string
	Extensions  []string
}

func Defaults() Config {
	return Config{
		Registry:           "auto",
		MaxConcurrentReads: 16,
		MaxSourceBytes:     16 << 20,
		LogLevel:           "info",
		LogFormat:          "text",
		AddNodeGlobals:     true,
		Entrypoints:        regexp.MustCompile(`.*`),
		Exclude:            []string{},
		Ignore:             []string{},
		NoParse:            []string{},
		ValidateSyntax:     true,
		Alias:              map[string]string{},
		Directories:        []string{"node_modules"},
		Extensions:         []string{".js", ".json", ".ts", ".tsx"},
	}
}

// Load resolves the configuration for basePath. explicitPath, when set, must
// exist; otherwise the default file names are probed in basePath. It returns
// the path of the file used, or "" when only defaults apply.
func Load(basePath, explicitPath string) (Config, string, error) {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return Config{}, "", fmt.Errorf("resolve base path: %w", err)
	}
	cfg := Defaults()
	cfg.BasePath = baseAbs

	configPath, found, err := resolveConfigPath(baseAbs, strings.TrimSpace(explicitPath))
	if err != nil {
		return Config{}, "", err
	}
	if !found {
		return cfg, "", nil
	}

	data, err := readConfigFile(baseAbs, configPath)
	if err != nil {
		return Config{}, "", fmt.Errorf(readConfigFileErrFmt, configPath, err)
	}
	raw, err := parseConfig(configPath, data)
	if err != nil {
		return Config{}, "", fmt.Errorf(parseConfigErrFmt, configPath, err)
	}
	if err := raw.apply(&cfg, filepath.Dir(configPath)); err != nil {
		return Config{}, "", fmt.Errorf(parseConfigErrFmt, configPath, err)
	}
	return cfg, configPath, nil
}

func resolveConfigPath(basePath, explicitPath string) (string, bool, error) {
	if explicitPath != "" {
		candidate := explicitPath
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(basePath, candidate)
		}
		candidate = filepath.Clean(candidate)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file not found: %s", candidate)
			}
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
		return candidate, true, nil
	}

	for _, name := range defaultFileNames {
		candidate := filepath.Join(basePath, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
	}
	return "", false, nil
}

func readConfigFile(basePath, path string) ([]byte, error) {
	if isPathUnderRoot(basePath, path) {
		return safeio.ReadFileUnder(basePath, path)
	}
	return safeio.ReadFile(path)
}

// parseConfig validates the document against the embedded schema, then
// decodes it strictly into rawConfig.
func parseConfig(path string, data []byte) (rawConfig, error) {
	format := configFormat(path)
	document, err := decodeDocument(format, data)
	if err != nil {
		return rawConfig{}, err
	}
	if err := validateDocument(document); err != nil {
		return rawConfig{}, err
	}

	var cfg rawConfig
	switch format {
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid JSON config: %w", err)
		}
		if decoder.More() {
			return rawConfig{}, fmt.Errorf("invalid JSON config: multiple JSON values")
		}
	case "toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return cfg, nil
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	return cfg, nil
}

func configFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func decodeDocument(format string, data []byte) (any, error) {
	var document any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("invalid JSON config: %w", err)
		}
	case "toml":
		var table map[string]any
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("invalid TOML config: %w", err)
		}
		document = table
	default:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	if document == nil {
		document = map[string]any{}
	}
	return document, nil
}

func validateDocument(document any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schemaDocument), gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, problem := range result.Errors() {
		problems = append(problems, problem.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

type rawConfig struct {
	BasePath           *string           `yaml:"basePath" json:"basePath" toml:"basePath"`
	Registry           *string           `yaml:"registry" json:"registry" toml:"registry"`
	MaxConcurrentReads *int              `yaml:"maxConcurrentReads" json:"maxConcurrentReads" toml:"maxConcurrentReads"`
	MaxSourceBytes     *int64            `yaml:"maxSourceBytes" json:"maxSourceBytes" toml:"maxSourceBytes"`
	LogLevel           *string           `yaml:"logLevel" json:"logLevel" toml:"logLevel"`
	LogFormat          *string           `yaml:"logFormat" json:"logFormat" toml:"logFormat"`
	BundlerOptions     rawBundlerOptions `yaml:"bundlerOptions" json:"bundlerOptions" toml:"bundlerOptions"`
}

type rawBundlerOptions struct {
	AddNodeGlobals     *bool      `yaml:"addNodeGlobals" json:"addNodeGlobals" toml:"addNodeGlobals"`
	Entrypoints        *string    `yaml:"entrypoints" json:"entrypoints" toml:"entrypoints"`
	Exclude            []string   `yaml:"exclude" json:"exclude" toml:"exclude"`
	Ignore             []string   `yaml:"ignore" json:"ignore" toml:"ignore"`
	NoParse            []string   `yaml:"noParse" json:"noParse" toml:"noParse"`
	IgnoredModuleNames []any      `yaml:"ignoredModuleNames" json:"ignoredModuleNames" toml:"ignoredModuleNames"`
	ValidateSyntax     *bool      `yaml:"validateSyntax" json:"validateSyntax" toml:"validateSyntax"`
	Resolve            rawResolve `yaml:"resolve" json:"resolve" toml:"resolve"`
}

type rawResolve struct {
	Alias       map[string]string `yaml:"alias" json:"alias" toml:"alias"`
	Directories []string          `yaml:"directories" json:"directories" toml:"directories"`
	Extensions  []string          `yaml:"extensions" json:"extensions" toml:"extensions"`
}

// apply merges the values present in the file over cfg. Relative paths are
// taken relative to configDir.
func (c rawConfig) apply(cfg *Config, configDir string) error {
	options := c.BundlerOptions
	if options.IgnoredModuleNames != nil {
		return fmt.Errorf("%w: bundlerOptions.ignoredModuleNames, use bundlerOptions.exclude instead", ErrRemovedOption)
	}

	if c.BasePath != nil {
		cfg.BasePath = absolutePath(configDir, *c.BasePath)
	}
	if c.Registry != nil {
		cfg.Registry = *c.Registry
	}
	if c.MaxConcurrentReads != nil {
		cfg.MaxConcurrentReads = *c.MaxConcurrentReads
	}
	if c.MaxSourceBytes != nil {
		cfg.MaxSourceBytes = *c.MaxSourceBytes
	}
	if c.LogLevel != nil {
		cfg.LogLevel = *c.LogLevel
	}
	if c.LogFormat != nil {
		cfg.LogFormat = *c.LogFormat
	}

	if options.AddNodeGlobals != nil {
		cfg.AddNodeGlobals = *options.AddNodeGlobals
	}
	if options.Entrypoints != nil {
		pattern, err := regexp.Compile(*options.Entrypoints)
		if err != nil {
			return fmt.Errorf("invalid bundlerOptions.entrypoints: %w", err)
		}
		cfg.Entrypoints = pattern
	}
	if options.Exclude != nil {
		cfg.Exclude = normalizeNames(options.Exclude)
	}
	if options.Ignore != nil {
		cfg.Ignore = normalizeNames(options.Ignore)
	}
	if options.NoParse != nil {
		cfg.NoParse = normalizeNames(options.NoParse)
	}
	if options.ValidateSyntax != nil {
		cfg.ValidateSyntax = *options.ValidateSyntax
	}

	resolve := options.Resolve
	if resolve.Alias != nil {
		cfg.Alias = make(map[string]string, len(resolve.Alias))
		for name, target := range resolve.Alias {
			cfg.Alias[name] = target
		}
	}
	if resolve.Directories != nil {
		cfg.Directories = normalizeNames(resolve.Directories)
	}
	if resolve.Extensions != nil {
		cfg.Extensions = normalizeNames(resolve.Extensions)
	}
	return nil
}

// MergeExclude appends names to the exclude list, skipping duplicates.
func (c *Config) MergeExclude(names []string) {
	c.Exclude = normalizeNames(append(append([]string{}, c.Exclude...), names...))
}

func normalizeNames(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func absolutePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

func isPathUnderRoot(rootPath, targetPath string) bool {
	relative, err := filepath.Rel(rootPath, targetPath)
	if err != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(os.PathSeparator))
}
