package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is read from the working directory when no config path is given
const DefaultFile = "trace-analyzer.toml"

// EnvPrefix prefixes environment overrides, e.g. TRACE_ANALYZER_ANALYSIS_MAXNODES=50
const EnvPrefix = "TRACE_ANALYZER_"

// AnalysisConfig tunes the trace analysis pipeline
type AnalysisConfig struct {
	Threshold      float64 `koanf:"threshold"`
	MultiThreshold float64 `koanf:"multithreshold"`
	MaxNodes       int     `koanf:"maxnodes"`
	MultiMaxNodes  int     `koanf:"multimaxnodes"`
	Optimize       bool    `koanf:"optimize"`
}

// ScanConfig holds the security scan filters
type ScanConfig struct {
	IncludeTheoretical bool          `koanf:"theoretical"`
	MinSeverity        string        `koanf:"minseverity"`
	MaxResults         int           `koanf:"maxresults"`
	ExposureWindow     time.Duration `koanf:"window"`
}

// CacheConfig sizes the vulnerability match cache
type CacheConfig struct {
	Size int           `koanf:"size"`
	TTL  time.Duration `koanf:"ttl"`
}

// WatchConfig controls how file changes are batched in watch mode
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
	MaxWait  time.Duration `koanf:"maxwait"`
}

// Config holds all configuration for the application
type Config struct {
	Analysis   AnalysisConfig `koanf:"analysis"`
	Scan       ScanConfig     `koanf:"scan"`
	Cache      CacheConfig    `koanf:"cache"`
	Watch      WatchConfig    `koanf:"watch"`
	Verbosity  string         `koanf:"verbosity"`
	VerboseCnt int            `koanf:"verbose"`
	JSON       bool           `koanf:"json"`
	OtelStdout bool           `koanf:"otelstdout"`
}

// flagKeys maps command-line flag names onto config keys
var flagKeys = map[string]string{
	"threshold":       "analysis.threshold",
	"multi-threshold": "analysis.multithreshold",
	"max-nodes":       "analysis.maxnodes",
	"multi-max-nodes": "analysis.multimaxnodes",
	"optimize":        "analysis.optimize",
	"theoretical":     "scan.theoretical",
	"min-severity":    "scan.minseverity",
	"max-results":     "scan.maxresults",
	"window":          "scan.window",
	"cache-size":      "cache.size",
	"cache-ttl":       "cache.ttl",
	"debounce":        "watch.debounce",
	"max-wait":        "watch.maxwait",
	"verbosity":       "verbosity",
	"verbose":         "verbose",
	"json":            "json",
	"otel-stdout":     "otelstdout",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"analysis.threshold":      0.05,
		"analysis.multithreshold": 0.03,
		"analysis.maxnodes":       100,
		"analysis.multimaxnodes":  200,
		"analysis.optimize":       true,
		"scan.theoretical":        false,
		"scan.minseverity":        "",
		"scan.maxresults":         0,
		"scan.window":             "168h",
		"cache.size":              1024,
		"cache.ttl":               "1h",
		"watch.debounce":          "500ms",
		"watch.maxwait":           "5s",
		"verbosity":               "",
		"verbose":                 0,
		"json":                    false,
		"otelstdout":              false,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults. An explicit path must exist;
// the default file is optional.
func Load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configPath := path
	if configPath == "" {
		configPath = DefaultFile
	}
	if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		provider := posflag.ProviderWithFlag(f, ".", k, func(flag *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[flag.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(f, flag)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the analysis cannot run with
func (c *Config) Validate() error {
	for name, threshold := range map[string]float64{
		"analysis.threshold":      c.Analysis.Threshold,
		"analysis.multithreshold": c.Analysis.MultiThreshold,
	} {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, threshold)
		}
	}
	if c.Analysis.MaxNodes < 0 || c.Analysis.MultiMaxNodes < 0 {
		return fmt.Errorf("max nodes must not be negative")
	}
	if c.Scan.MaxResults < 0 {
		return fmt.Errorf("scan.maxresults must not be negative, got %d", c.Scan.MaxResults)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

// Read unflattens the dotted default keys so later providers merge into them
func (p *mapProvider) Read() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for key, value := range p.m {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return out, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
