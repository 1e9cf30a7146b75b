// Package config loads and validates the composition root's YAML
// configuration: which loggers, LTB pools, publishers and hex sinks
// to wire up, plus the ambient logging/metrics settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/derMihai/condalf/pkg/cderrors"
)

// LoggerConfig describes one logger instance (spec.md §4.J).
type LoggerConfig struct {
	Name            string `yaml:"name"`
	BaseName        string `yaml:"base_name"`
	RecordQueueSize int    `yaml:"record_queue_size"`
	EncodingBufSize int    `yaml:"encoding_buf_size"`
	// Driver names an entry in Publishers, HexSinks or LTBs that this
	// logger's envelopes are sent to.
	Driver string `yaml:"driver"`
}

// LTBConfig describes one long-term-buffer pool (spec.md §4.H).
type LTBConfig struct {
	Name    string `yaml:"name"`
	PoolDir string `yaml:"pool_dir"`
	// Sender names a Publishers or HexSinks entry; empty means this
	// pool only accumulates and never publishes on its own.
	Sender string `yaml:"sender"`
}

// PublisherConfig describes one outbound transport endpoint
// (spec.md §4.I).
type PublisherConfig struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	Path       string `yaml:"path"`
	RetryCount int    `yaml:"retry_count"`
}

// HexSinkConfig describes one debug hex-dump sink.
type HexSinkConfig struct {
	Name string `yaml:"name"`
}

// SamplerConfig describes one synthetic sensor-sampling loop
// (original_source/usecase/usecase.c's light/temp probe).
type SamplerConfig struct {
	Name string `yaml:"name"`
	// Logger names the Loggers entry records are put to.
	Logger string `yaml:"logger"`
	// PeriodMS is the delay between probes in milliseconds; defaults
	// to 5000 (usecase.c's PROBING_PERIOD).
	PeriodMS int `yaml:"period_ms"`
}

// Config is the top-level composition-root configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MetricsAddr string `yaml:"metrics_addr"`
	DebugAddr   string `yaml:"debug_addr"`

	// DispatchFilesLimit is the subsystem-wide LTB publish threshold
	// (spec.md §4.H.init's nb_files_lim).
	DispatchFilesLimit uint64 `yaml:"dispatch_files_limit"`

	Publishers []PublisherConfig `yaml:"publishers"`
	HexSinks   []HexSinkConfig   `yaml:"hex_sinks"`
	LTBs       []LTBConfig       `yaml:"ltbs"`
	Loggers    []LoggerConfig    `yaml:"loggers"`
	Samplers   []SamplerConfig   `yaml:"samplers"`

	// RDLog, if set, names the logger (by Name, from Loggers) that
	// backs the process-wide remote diagnostics log.
	RDLog string `yaml:"rdlog"`
	// RDLogMaxLen caps a diagnostics message at this many bytes before
	// truncation; 0 means rdlog.DefaultMaxLen (64, matching the
	// original's RDLOG_LOG_MAXLEN).
	RDLogMaxLen int `yaml:"rdlog_max_len"`
}

// Load reads path (if non-empty) as YAML, applies defaults, then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cderrors.Wrap(cderrors.Invalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, cderrors.Wrap(cderrors.Invalid, err)
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9100"
	}
	if cfg.DebugAddr == "" {
		cfg.DebugAddr = ":9101"
	}
	if cfg.DispatchFilesLimit == 0 {
		cfg.DispatchFilesLimit = 8
	}
	for i := range cfg.Loggers {
		l := &cfg.Loggers[i]
		if l.RecordQueueSize == 0 {
			l.RecordQueueSize = 64
		}
		if l.EncodingBufSize == 0 {
			l.EncodingBufSize = 2048
		}
	}
	for i := range cfg.Publishers {
		if cfg.Publishers[i].RetryCount == 0 {
			cfg.Publishers[i].RetryCount = 3
		}
	}
	for i := range cfg.Samplers {
		if cfg.Samplers[i].PeriodMS == 0 {
			cfg.Samplers[i].PeriodMS = 5000
		}
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.LogLevel = getEnvString("CONDALF_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvString("CONDALF_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = getEnvString("CONDALF_METRICS_ADDR", cfg.MetricsAddr)
	cfg.DebugAddr = getEnvString("CONDALF_DEBUG_ADDR", cfg.DebugAddr)
	cfg.DispatchFilesLimit = uint64(getEnvInt(
		"CONDALF_DISPATCH_FILES_LIMIT", int(cfg.DispatchFilesLimit)))
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Validate checks structural invariants Load can't fix up with
// defaults: unique, non-empty names and driver references that
// resolve to a configured sink.
func Validate(cfg *Config) error {
	sinks := make(map[string]bool)
	for _, p := range cfg.Publishers {
		if p.Name == "" {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("publisher with empty name"))
		}
		if sinks[p.Name] {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("duplicate sink name %q", p.Name))
		}
		sinks[p.Name] = true
	}
	for _, h := range cfg.HexSinks {
		if h.Name == "" {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("hex sink with empty name"))
		}
		if sinks[h.Name] {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("duplicate sink name %q", h.Name))
		}
		sinks[h.Name] = true
	}

	ltbs := make(map[string]bool)
	for _, l := range cfg.LTBs {
		if l.Name == "" || l.PoolDir == "" {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("ltb %q missing name or pool_dir", l.Name))
		}
		if l.Sender != "" && !sinks[l.Sender] {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("ltb %q references unknown sender %q", l.Name, l.Sender))
		}
		ltbs[l.Name] = true
	}

	loggerNames := make(map[string]bool)
	for _, l := range cfg.Loggers {
		if l.Name == "" {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("logger with empty name"))
		}
		if !sinks[l.Driver] && !ltbs[l.Driver] {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("logger %q references unknown driver %q", l.Name, l.Driver))
		}
		if l.RecordQueueSize&(l.RecordQueueSize-1) != 0 {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("logger %q record_queue_size must be a power of two", l.Name))
		}
		loggerNames[l.Name] = true
	}

	for _, s := range cfg.Samplers {
		if s.Name == "" {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("sampler with empty name"))
		}
		if !loggerNames[s.Logger] {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("sampler %q references unknown logger %q", s.Name, s.Logger))
		}
		if s.PeriodMS <= 0 {
			return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("sampler %q period_ms must be positive", s.Name))
		}
	}

	if cfg.RDLog != "" && !loggerNames[cfg.RDLog] {
		return cderrors.Wrap(cderrors.Invalid, fmt.Errorf("rdlog references unknown logger %q", cfg.RDLog))
	}

	return nil
}
