// # internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"pylens/internal/analysis"
)

type Config struct {
	Thresholds    analysis.Thresholds       `toml:"thresholds"`
	Security      analysis.SecurityPatterns `toml:"security"`
	Watch         Watch                     `toml:"watch"`
	Gate          Gate                      `toml:"gate"`
	History       History                   `toml:"history"`
	Report        Report                    `toml:"report"`
	Observability Observability             `toml:"observability"`
}

type Watch struct {
	Paths        []string `toml:"paths"`
	Exclude      []string `toml:"exclude"`
	DebounceMS   int      `toml:"debounce_ms"`
	RescanPerSec float64  `toml:"rescan_per_sec"`
	RescanBurst  int      `toml:"rescan_burst"`
}

func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

type Gate struct {
	MaxWarnings    int  `toml:"max_warnings"` // -1 disables the warning budget
	FailOnSecurity bool `toml:"fail_on_security"`
}

type History struct {
	Path    string `toml:"path"`
	Enabled bool   `toml:"enabled"`
}

type Report struct {
	MarkdownPath string `toml:"markdown_path"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Gate.MaxWarnings = -1
	cfg.Gate.FailOnSecurity = true
	cfg.History.Enabled = true
	return cfg
}

// Load reads a TOML config file. A missing file yields the defaults; an
// unknown key anywhere in the file is an error rather than a silent skip.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown config key %q", path, undecoded[0].String())
	}

	cfg.applyDefaults()

	// Booleans and the -1 sentinel cannot be told apart from their zero
	// values, so absence is checked against the decode metadata.
	if !md.IsDefined("gate", "max_warnings") {
		cfg.Gate.MaxWarnings = -1
	}
	if !md.IsDefined("gate", "fail_on_security") {
		cfg.Gate.FailOnSecurity = true
	}
	if !md.IsDefined("history", "enabled") {
		cfg.History.Enabled = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	th := analysis.DefaultThresholds()
	if c.Thresholds.LongFunctionLines == 0 {
		c.Thresholds.LongFunctionLines = th.LongFunctionLines
	}
	if c.Thresholds.MaxParameters == 0 {
		c.Thresholds.MaxParameters = th.MaxParameters
	}
	if c.Thresholds.MaxNestingDepth == 0 {
		c.Thresholds.MaxNestingDepth = th.MaxNestingDepth
	}
	if c.Thresholds.GodClassMethods == 0 {
		c.Thresholds.GodClassMethods = th.GodClassMethods
	}

	sec := analysis.DefaultSecurityPatterns()
	if len(c.Security.DangerousCalls) == 0 {
		c.Security.DangerousCalls = sec.DangerousCalls
	}
	if c.Security.RiskyModules == nil {
		c.Security.RiskyModules = sec.RiskyModules
	}
	if len(c.Security.SecretPatterns) == 0 {
		c.Security.SecretPatterns = sec.SecretPatterns
	}
	if len(c.Security.ShellCalls) == 0 {
		c.Security.ShellCalls = sec.ShellCalls
	}

	if len(c.Watch.Paths) == 0 {
		c.Watch.Paths = []string{"."}
	}
	if c.Watch.Exclude == nil {
		c.Watch.Exclude = []string{".git/**", "__pycache__/**", "*.pyc"}
	}
	if c.Watch.DebounceMS == 0 {
		c.Watch.DebounceMS = 400
	}
	if c.Watch.RescanPerSec == 0 {
		c.Watch.RescanPerSec = 10
	}
	if c.Watch.RescanBurst == 0 {
		c.Watch.RescanBurst = 5
	}

	if c.History.Path == "" {
		c.History.Path = "pylens.db"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "pylens"
	}
}

func (c *Config) validate() error {
	for name, v := range map[string]int{
		"thresholds.long_function_lines": c.Thresholds.LongFunctionLines,
		"thresholds.max_parameters":      c.Thresholds.MaxParameters,
		"thresholds.max_nesting_depth":   c.Thresholds.MaxNestingDepth,
		"thresholds.god_class_methods":   c.Thresholds.GodClassMethods,
		"watch.debounce_ms":              c.Watch.DebounceMS,
		"watch.rescan_burst":             c.Watch.RescanBurst,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.Watch.RescanPerSec <= 0 {
		return fmt.Errorf("watch.rescan_per_sec must be positive, got %v", c.Watch.RescanPerSec)
	}
	if c.Gate.MaxWarnings < -1 {
		return fmt.Errorf("gate.max_warnings must be >= -1, got %d", c.Gate.MaxWarnings)
	}

	// Compiling the scanner here surfaces bad regexes at load time instead
	// of first use.
	if _, err := analysis.NewScanner(c.Security); err != nil {
		return fmt.Errorf("security patterns: %w", err)
	}
	return nil
}
