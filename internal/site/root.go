package site

import (
	"os"
	"path/filepath"
	"strings"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/markdown"
)

// DefaultRootName is the endpoint name of a root declared without one.
const DefaultRootName = "root"

// HomeOutput is the home page output served at the site root URL.
const HomeOutput = "index.html"

// Root is the top folder of a site. It anchors the tree to a directory on
// disk and holds the optional home page.
type Root struct {
	top      *Folder
	base     string
	home     *Page
	markdown *markdown.Converter
}

// NewRoot creates an empty tree whose templates live under baseDir.
func NewRoot(baseDir string, opts ...Option) (*Root, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, serrors.WrapError(err, serrors.CategoryConfig, "invalid pages folder").
			WithContext("path", baseDir).
			Build()
	}

	o := apply(opts)
	if o.name == "" {
		o.name = DefaultRootName
	}
	if err := validName(o.name); err != nil {
		return nil, serrors.WrapError(err, serrors.CategoryValidation, "invalid root name").
			WithContext("name", o.name).
			Build()
	}
	if o.markdown == nil {
		o.markdown = markdown.New(markdown.Options{})
	}

	r := &Root{base: abs, markdown: o.markdown}
	r.top = newFolder(r, nil, "", o.name)
	// The root endpoint resolves to the top folder; nothing below may reuse it.
	r.top.names[o.name] = true
	return r, nil
}

// Top is the root's own folder level.
func (r *Root) Top() *Folder { return r.top }

// Name is the root endpoint name.
func (r *Root) Name() string { return r.top.name }

// Page declares a plain template page at the top level.
func (r *Root) Page(template string, opts ...Option) (*Page, error) {
	return r.top.Page(template, opts...)
}

// MarkdownPage declares a markdown page at the top level.
func (r *Root) MarkdownPage(template string, opts ...Option) (*Page, error) {
	return r.top.MarkdownPage(template, opts...)
}

// Add declares a top-level page of the named kind.
func (r *Root) Add(kind, template string, opts ...Option) (*Page, error) {
	return r.top.Add(kind, template, opts...)
}

// Folder declares a top-level child folder.
func (r *Root) Folder(dir string, opts ...Option) (*Folder, error) {
	return r.top.Folder(dir, opts...)
}

// BaseDir is the absolute pages folder.
func (r *Root) BaseDir() string { return r.base }

// Markdown is the converter markdown pages use.
func (r *Root) Markdown() *markdown.Converter { return r.markdown }

// Home declares the page served at the site root. Its output defaults to
// HomeOutput; with another output the home page is addressed by that file.
func (r *Root) Home(template string, opts ...Option) (*Page, error) {
	if r.home != nil {
		return nil, serrors.WrapError(ErrDuplicateName, serrors.CategoryAlreadyExists, "home page already declared").
			WithContext("template", r.home.template).
			Build()
	}
	p, err := r.top.newPage("", template, HomeOutput, opts)
	if err != nil {
		return nil, err
	}
	p.home = true
	r.top.claim(p.name, p.output)
	r.home = p
	return p, nil
}

// HomePage returns the home page, or nil.
func (r *Root) HomePage() *Page { return r.home }

// FolderFor returns a new folder mounted at location, which is a directory
// below the root or a declaration file inside one. Missing intermediate
// folders are created; opts apply to the final folder only.
func (r *Root) FolderFor(location string, opts ...Option) (*Folder, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, serrors.WrapError(err, serrors.CategoryValidation, "invalid folder location").
			WithContext("path", location).
			Build()
	}
	if info, statErr := os.Stat(abs); filepath.Base(abs) == DeclarationFile || (statErr == nil && !info.IsDir()) {
		abs = filepath.Dir(abs)
	}

	rel, err := filepath.Rel(r.base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, serrors.ValidationError("folder location is outside the pages folder").
			WithContext("path", location).
			WithContext("root", r.base).
			Build()
	}
	if rel == "." {
		return nil, serrors.WrapError(ErrDuplicateName, serrors.CategoryAlreadyExists, "location is the root folder").
			WithContext("path", location).
			Build()
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	f := r.top
	for _, seg := range segments[:len(segments)-1] {
		child, ok := f.Child(seg)
		if !ok {
			if child, err = f.Folder(seg); err != nil {
				return nil, err
			}
		}
		f = child
	}
	return f.Folder(segments[len(segments)-1], opts...)
}

// Entry is one step of a traversal: a folder or a page.
type Entry struct {
	Folder *Folder
	Page   *Page
}

// Walk visits the tree depth first: the home page, then every folder
// followed by its pages and then its child folders, all in declaration
// order. Walking stops at the first error fn returns.
func (r *Root) Walk(fn func(Entry) error) error {
	if r.home != nil {
		if err := fn(Entry{Folder: r.top, Page: r.home}); err != nil {
			return err
		}
	}
	return walkFolder(r.top, fn)
}

func walkFolder(f *Folder, fn func(Entry) error) error {
	if err := fn(Entry{Folder: f}); err != nil {
		return err
	}
	for _, p := range f.pages {
		if err := fn(Entry{Folder: f, Page: p}); err != nil {
			return err
		}
	}
	for _, c := range f.folders {
		if err := walkFolder(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// AllPages returns every page, home included, in traversal order.
func (r *Root) AllPages() []*Page {
	var pages []*Page
	_ = r.Walk(func(e Entry) error {
		if e.Page != nil {
			pages = append(pages, e.Page)
		}
		return nil
	})
	return pages
}

// AllFolders returns every folder, root included, in traversal order.
func (r *Root) AllFolders() []*Folder {
	var folders []*Folder
	_ = r.Walk(func(e Entry) error {
		if e.Page == nil {
			folders = append(folders, e.Folder)
		}
		return nil
	})
	return folders
}
