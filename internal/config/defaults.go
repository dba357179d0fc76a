package config

import "strings"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type pagesDefaults struct{}

func (pagesDefaults) Domain() string { return "pages" }

func (pagesDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Pages.Folder == "" {
		cfg.Pages.Folder = "pages"
	}
	return nil
}

type outputDefaults struct{}

func (outputDefaults) Domain() string { return "output" }

func (outputDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "static"
	}
	if cfg.Output.CopyAssets == nil {
		v := true
		cfg.Output.CopyAssets = &v
	}
	return nil
}

type urlDefaults struct{}

func (urlDefaults) Domain() string { return "urls" }

// ApplyDefaults mirrors the layout where rendered pages are served from the
// application's static folder: prefix "static/" and output "static".
func (urlDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.URLs.Prefix == "" {
		cfg.URLs.Prefix = "static/"
	}
	if cfg.URLs.ApplicationRoot == "" {
		cfg.URLs.ApplicationRoot = "/"
	}
	if cfg.URLs.Scheme == "" {
		cfg.URLs.Scheme = "http"
	}
	cfg.URLs.Scheme = strings.ToLower(cfg.URLs.Scheme)
	return nil
}

type markdownDefaults struct{}

func (markdownDefaults) Domain() string { return "markdown" }

func (markdownDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Markdown.HighlightStyle == "" {
		cfg.Markdown.HighlightStyle = "github"
	}
	return nil
}

type serveDefaults struct{}

func (serveDefaults) Domain() string { return "serve" }

func (serveDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = "127.0.0.1:5000"
	}
	return nil
}

var appliers = []DefaultApplier{
	pagesDefaults{},
	outputDefaults{},
	urlDefaults{},
	markdownDefaults{},
	serveDefaults{},
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
