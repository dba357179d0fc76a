package site

import (
	"context"
	stderrors "errors"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/frontmatter"
)

// Templater is the host templating call pages render through.
type Templater interface {
	// RenderTemplate renders the named template file.
	RenderTemplate(name string, data map[string]any) (string, error)
	// RenderString renders src as a template with the given name.
	RenderString(name, src string, data map[string]any) (string, error)
}

// Page is one template file mapped to one output document.
type Page struct {
	folder   *Folder
	template string
	name     string
	output   string
	params   map[string]any
	kind     Kind
	home     bool
}

func (p *Page) Template() string { return p.template }
func (p *Page) Name() string     { return p.name }
func (p *Page) Output() string   { return p.output }
func (p *Page) Kind() string     { return p.kind.Name }
func (p *Page) Folder() *Folder  { return p.folder }
func (p *Page) IsHome() bool     { return p.home }

// Params returns a copy of the declared render parameters.
func (p *Page) Params() map[string]any { return maps.Clone(p.params) }

// Path is the template name relative to the pages folder, slash separated.
func (p *Page) Path() string { return path.Join(p.folder.RelDir(), p.template) }

// OutputPath is where the page is written, relative to the output directory.
func (p *Page) OutputPath() string { return path.Join(p.folder.RelDir(), p.output) }

// SourceFile is the absolute path of the page template.
func (p *Page) SourceFile() string {
	return filepath.Join(p.folder.SourceDir(), filepath.FromSlash(p.template))
}

// Endpoint is the dotted path of folder names leading to the page.
func (p *Page) Endpoint() string {
	if fe := p.folder.Endpoint(); fe != "" {
		return fe + "." + p.name
	}
	return p.name
}

// Render produces the page document through host. ambient holds values
// shared by every page; declared params take precedence over them and the
// page itself is available as "page". Render never writes files.
func (p *Page) Render(ctx context.Context, host Templater, ambient map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := make(map[string]any, len(ambient)+len(p.params)+1)
	maps.Copy(data, ambient)
	maps.Copy(data, p.params)
	data["page"] = p

	out, err := p.kind.Render(ctx, p, host, data)
	if err != nil {
		category := serrors.CategoryRender
		if ce, ok := serrors.AsClassified(err); ok {
			category = ce.Category()
		}
		return "", serrors.WrapError(err, category, "failed to render page").
			WithContext("page", p.Path()).
			Build()
	}
	return out, nil
}

func renderTemplate(_ context.Context, p *Page, host Templater, data map[string]any) (string, error) {
	return host.RenderTemplate(p.Path(), data)
}

// renderMarkdown converts the page source to HTML and renders the result as
// a template. Front matter keys fill in params the page does not declare.
func renderMarkdown(_ context.Context, p *Page, host Templater, data map[string]any) (string, error) {
	raw, err := os.ReadFile(p.SourceFile())
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", serrors.WrapError(err, serrors.CategoryNotFound, "page source not found").
				WithContext("path", p.SourceFile()).
				Build()
		}
		return "", serrors.WrapError(err, serrors.CategoryFileSystem, "failed to read page source").
			WithContext("path", p.SourceFile()).
			Build()
	}

	doc, err := frontmatter.Parse(raw)
	if err != nil {
		return "", serrors.WrapError(err, serrors.CategoryTemplate, "invalid front matter").Build()
	}

	res, err := p.folder.root.Markdown().Convert(doc.Body)
	if err != nil {
		return "", serrors.WrapError(err, serrors.CategoryRender, "markdown conversion failed").Build()
	}

	for k, v := range doc.Fields {
		if _, declared := p.params[k]; !declared {
			data[k] = v
		}
	}
	_, declared := p.params["title"]
	_, inFrontMatter := doc.Fields["title"]
	if !declared && !inFrontMatter {
		data["title"] = res.Title
		if res.Title == "" {
			data["title"] = DefaultTitle(p.name)
		}
	}

	return host.RenderString(p.Path(), string(res.HTML), data)
}

// DefaultTitle turns a page name such as "getting-started" into "Getting Started".
func DefaultTitle(name string) string {
	words := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}
