package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema. Nested
// sections map naturally to the flag groups.
type FileConfig struct {
	Target  string `yaml:"target" json:"target"`
	Output  string `yaml:"output" json:"output"`
	AbsPath string `yaml:"abspath" json:"abspath"`

	Excludes      []string `yaml:"excludes" json:"excludes"`
	StripExcludes []string `yaml:"stripExcludes" json:"stripExcludes"`
	StripComments bool     `yaml:"stripComments" json:"stripComments"`
	AddedImports  []string `yaml:"addedImports" json:"addedImports"`
	Redirects     []string `yaml:"redirects" json:"redirects"`

	Inline struct {
		CSS     *bool `yaml:"css" json:"css"`
		Scripts *bool `yaml:"scripts" json:"scripts"`
	} `yaml:"inline" json:"inline"`

	// ImplicitStrip defaults to on; the file may switch it off.
	ImplicitStrip *struct {
		Enable          *bool `yaml:"enable" json:"enable"`
		IgnoreRedirects bool  `yaml:"ignoreRedirects" json:"ignoreRedirects"`
	} `yaml:"implicitStrip" json:"implicitStrip"`

	Fetch struct {
		UA            string        `yaml:"ua" json:"ua"`
		MaxAttempts   int           `yaml:"maxAttempts" json:"maxAttempts"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
		MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir    string        `yaml:"dir" json:"dir"`
		MaxAge time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear  bool          `yaml:"clear" json:"clear"`
		Bypass bool          `yaml:"bypass" json:"bypass"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields
// that are currently unset or still at their flag defaults. Flags should
// already have been parsed; file config supplies defaults while explicit
// flags keep precedence. Tri-state toggles (inline, implicitStrip) apply
// unconditionally when present in the file.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.Target == "" && fc.Target != "" {
		cfg.Target = fc.Target
	}
	if cfg.OutputPath == "" && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if cfg.AbsPath == "" && fc.AbsPath != "" {
		cfg.AbsPath = fc.AbsPath
	}
	if len(cfg.Excludes) == 0 && len(fc.Excludes) > 0 {
		cfg.Excludes = append([]string{}, fc.Excludes...)
	}
	if len(cfg.StripExcludes) == 0 && len(fc.StripExcludes) > 0 {
		cfg.StripExcludes = append([]string{}, fc.StripExcludes...)
	}
	if len(cfg.AddedImports) == 0 && len(fc.AddedImports) > 0 {
		cfg.AddedImports = append([]string{}, fc.AddedImports...)
	}
	if len(cfg.Redirects) == 0 && len(fc.Redirects) > 0 {
		cfg.Redirects = append([]string{}, fc.Redirects...)
	}
	if !cfg.StripComments && fc.StripComments {
		cfg.StripComments = true
	}
	if fc.Inline.CSS != nil {
		cfg.InlineCSS = *fc.Inline.CSS
	}
	if fc.Inline.Scripts != nil {
		cfg.InlineScripts = *fc.Inline.Scripts
	}
	if fc.ImplicitStrip != nil {
		if fc.ImplicitStrip.Enable != nil {
			cfg.NoImplicitStrip = !*fc.ImplicitStrip.Enable
		}
		if fc.ImplicitStrip.IgnoreRedirects {
			cfg.ImplicitStripIgnoresRedirects = true
		}
	}
	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.Fetch.UA != "" {
		cfg.UserAgent = fc.Fetch.UA
	}
	if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == DefaultMaxAttempts) && fc.Fetch.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.Fetch.MaxAttempts
	}
	if (cfg.FetchTimeout == 0 || cfg.FetchTimeout == DefaultFetchTimeout) && fc.Fetch.Timeout > 0 {
		cfg.FetchTimeout = fc.Fetch.Timeout
	}
	if (cfg.MaxConcurrent == 0 || cfg.MaxConcurrent == DefaultMaxConcurrent) && fc.Fetch.MaxConcurrent > 0 {
		cfg.MaxConcurrent = fc.Fetch.MaxConcurrent
	}
	if cfg.CacheDir == "" && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.BypassCache && fc.Cache.Bypass {
		cfg.BypassCache = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig rejects configurations that cannot run.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Target) == "" {
		return errors.New("target document is required")
	}
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must be >= 0, got %d", cfg.MaxAttempts)
	}
	if cfg.MaxConcurrent < 0 {
		return fmt.Errorf("maxConcurrent must be >= 0, got %d", cfg.MaxConcurrent)
	}
	return nil
}
