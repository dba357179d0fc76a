package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// DefaultFile is the configuration file name used when -c is not given.
const DefaultFile = "spark.yaml"

// Config represents the application configuration.
type Config struct {
	Pages     PagesConfig     `yaml:"pages"`
	Templates TemplatesConfig `yaml:"templates"`
	Output    OutputConfig    `yaml:"output"`
	URLs      URLConfig       `yaml:"urls"`
	Render    RenderConfig    `yaml:"render"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Serve     ServeConfig     `yaml:"serve"`

	// Params are ambient template values available to every page.
	Params map[string]any `yaml:"params,omitempty"`

	// baseDir is the directory of the loaded file; relative paths resolve against it.
	baseDir string
}

// PagesConfig locates the page tree.
type PagesConfig struct {
	Folder string `yaml:"folder"`
}

// TemplatesConfig locates the application's own templates (layouts, partials).
type TemplatesConfig struct {
	Folder string `yaml:"folder,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory  string `yaml:"directory"`
	Clean      bool   `yaml:"clean"`       // Remove the output directory before rendering
	CopyAssets *bool  `yaml:"copy_assets"` // Copy non-template files of declared folders (default true)
}

// URLConfig controls how spark_url composes public URLs.
type URLConfig struct {
	Prefix          string `yaml:"prefix"`
	ApplicationRoot string `yaml:"application_root,omitempty"`
	ServerName      string `yaml:"server_name,omitempty"`
	Scheme          string `yaml:"scheme,omitempty"`
}

// RenderConfig tunes the render pass.
type RenderConfig struct {
	ContinueOnError bool   `yaml:"continue_on_error"`
	VerifyLinks     bool   `yaml:"verify_links"`
	Schedule        string `yaml:"schedule,omitempty"` // cron expression or "@every <duration>", used by serve
	Report          bool   `yaml:"report"`
}

// MarkdownConfig tunes markdown conversion.
type MarkdownConfig struct {
	HighlightStyle string `yaml:"highlight_style,omitempty"`
	HardWraps      bool   `yaml:"hard_wraps,omitempty"`
}

// ServeConfig configures the live server.
type ServeConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
	Watch   bool   `yaml:"watch"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(filepath.Dir(configPath)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, serrors.WrapError(err, serrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	cfg.baseDir = abs
	return cfg, nil
}

// Parse decodes YAML configuration, expanding environment variables first,
// then applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, serrors.WrapError(err, serrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = ApplyDefaults(cfg)
	return cfg
}

// BaseDir returns the directory relative paths are resolved against.
func (c *Config) BaseDir() string {
	if c.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return c.baseDir
}

// SetBaseDir overrides the directory relative paths are resolved against.
func (c *Config) SetBaseDir(dir string) { c.baseDir = dir }

// Resolve returns p made absolute against BaseDir. Empty stays empty.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir(), p)
}

// PagesDir is the absolute pages folder.
func (c *Config) PagesDir() string { return c.Resolve(c.Pages.Folder) }

// TemplatesDir is the absolute application templates folder, or "".
func (c *Config) TemplatesDir() string { return c.Resolve(c.Templates.Folder) }

// OutputDir is the absolute output directory.
func (c *Config) OutputDir() string { return c.Resolve(c.Output.Directory) }

// CopyAssets reports whether non-template files are copied to the output.
func (c *Config) CopyAssets() bool {
	return c.Output.CopyAssets == nil || *c.Output.CopyAssets
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return serrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.URLs.ServerName = "localhost:5000"
	example.Params = map[string]any{"site_name": "My Site"}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
