package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/spark/internal/config"
	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/site"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	return RunInit(root.Config, i.Force)
}

var examplePages = map[string]string{
	site.DeclarationFile: "home: index.html\npages:\n  - about.md\n",
	"index.html": `<!doctype html>
<title>{{ .site_name }}</title>
<h1>{{ .site_name }}</h1>
<p><a href="{{ spark_url "about" }}">About</a></p>
`,
	"about.md": "# About\n\nRendered by spark. Back to [home]({{ spark_url \"index\" }}).\n",
}

// RunInit writes the configuration file and, next to it, an example page
// tree unless a pages folder already exists.
func RunInit(configPath string, force bool) error {
	fmt.Println("Initializing spark project")
	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		fmt.Println("Initialization failed")
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	pages := cfg.PagesDir()
	if _, err := os.Stat(pages); err == nil {
		fmt.Printf("Keeping existing pages folder %s\n", pages)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to stat pages folder").
			WithContext("path", pages).
			Build()
	}

	if err := os.MkdirAll(pages, 0o750); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to create pages folder").
			WithContext("path", pages).
			Build()
	}
	for name, content := range examplePages {
		if err := os.WriteFile(filepath.Join(pages, name), []byte(content), 0o600); err != nil {
			return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to write example page").
				WithContext("path", name).
				Build()
		}
	}
	fmt.Println("initialized successfully")
	return nil
}
