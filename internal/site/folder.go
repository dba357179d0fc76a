package site

import (
	stderrors "errors"
	"path"
	"path/filepath"
	"strings"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/markdown"
)

var (
	// ErrDuplicateName is returned when a declaration reuses a sibling's
	// name, directory or output file.
	ErrDuplicateName = stderrors.New("duplicate name")
	// ErrInvalidName is returned for names and file names that cannot be
	// mapped to a single path segment.
	ErrInvalidName = stderrors.New("invalid name")
)

// Option configures a declared page or folder.
type Option func(*options)

type options struct {
	name     string
	output   string
	params   map[string]any
	markdown *markdown.Converter
}

// WithName overrides the endpoint name (default: file name without
// extension for pages, directory name for folders, "root" for the root).
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithOutput overrides a page's output file name.
func WithOutput(output string) Option { return func(o *options) { o.output = output } }

// WithParams sets a page's render parameters.
func WithParams(params map[string]any) Option {
	return func(o *options) {
		if o.params == nil {
			o.params = map[string]any{}
		}
		for k, v := range params {
			o.params[k] = v
		}
	}
}

// WithMarkdown sets the converter markdown pages of a root use.
func WithMarkdown(c *markdown.Converter) Option { return func(o *options) { o.markdown = c } }

func apply(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Folder is one directory level of the site. Pages and child folders share
// one name space and keep their declaration order.
type Folder struct {
	root    *Root
	parent  *Folder
	dir     string
	name    string
	pages   []*Page
	folders []*Folder

	names   map[string]bool
	dirs    map[string]bool
	outputs map[string]bool
}

func newFolder(root *Root, parent *Folder, dir, name string) *Folder {
	return &Folder{
		root:    root,
		parent:  parent,
		dir:     dir,
		name:    name,
		names:   map[string]bool{},
		dirs:    map[string]bool{},
		outputs: map[string]bool{},
	}
}

func (f *Folder) Dir() string     { return f.dir }
func (f *Folder) Name() string    { return f.name }
func (f *Folder) Parent() *Folder { return f.parent }
func (f *Folder) Root() *Root     { return f.root }

// Pages returns the folder's pages in declaration order.
func (f *Folder) Pages() []*Page { return append([]*Page(nil), f.pages...) }

// Folders returns the child folders in declaration order.
func (f *Folder) Folders() []*Folder { return append([]*Folder(nil), f.folders...) }

// RelDir is the folder path relative to the root, slash separated; "" for the root.
func (f *Folder) RelDir() string {
	if f.parent == nil {
		return ""
	}
	return path.Join(f.parent.RelDir(), f.dir)
}

// SourceDir is the absolute directory holding the folder's templates.
func (f *Folder) SourceDir() string {
	return filepath.Join(f.root.base, filepath.FromSlash(f.RelDir()))
}

// Endpoint is the dotted path of folder names below the root. The root's
// endpoint is its own name.
func (f *Folder) Endpoint() string {
	switch {
	case f.parent == nil:
		return ""
	case f.parent.parent == nil:
		return f.name
	default:
		return f.parent.Endpoint() + "." + f.name
	}
}

// Page declares a plain template page.
func (f *Folder) Page(template string, opts ...Option) (*Page, error) {
	return f.Add(KindPage, template, opts...)
}

// MarkdownPage declares a page converted from markdown before templating.
func (f *Folder) MarkdownPage(template string, opts ...Option) (*Page, error) {
	return f.Add(KindMarkdown, template, opts...)
}

// Add declares a page of the named kind. An empty kind is chosen from the
// template extension.
func (f *Folder) Add(kind, template string, opts ...Option) (*Page, error) {
	p, err := f.newPage(kind, template, "", opts)
	if err != nil {
		return nil, err
	}
	f.claim(p.name, p.output)
	f.pages = append(f.pages, p)
	return p, nil
}

func (f *Folder) newPage(kind, template, defaultOutput string, opts []Option) (*Page, error) {
	if err := validSegment(template); err != nil {
		return nil, f.invalid("template", template, err)
	}

	k := KindFor(template)
	if kind != "" {
		var ok bool
		if k, ok = LookupKind(kind); !ok {
			return nil, serrors.NotFoundError("unknown page kind").
				WithContext("kind", kind).
				WithContext("template", template).
				Build()
		}
	}

	o := apply(opts)
	base := strings.TrimSuffix(template, path.Ext(template))
	if o.name == "" {
		o.name = base
	}
	if o.output == "" {
		o.output = defaultOutput
	}
	if o.output == "" {
		o.output = base + ".html"
	}

	if err := validName(o.name); err != nil {
		return nil, f.invalid("name", o.name, err)
	}
	if err := validSegment(o.output); err != nil {
		return nil, f.invalid("output", o.output, err)
	}
	if f.names[o.name] {
		return nil, f.duplicate("name", o.name)
	}
	if f.outputs[o.output] || f.dirs[o.output] {
		return nil, f.duplicate("output", o.output)
	}

	return &Page{
		folder:   f,
		template: template,
		name:     o.name,
		output:   o.output,
		params:   o.params,
		kind:     k,
	}, nil
}

// Folder declares a child folder for the sub-directory dir.
func (f *Folder) Folder(dir string, opts ...Option) (*Folder, error) {
	if err := validSegment(dir); err != nil {
		return nil, f.invalid("dir", dir, err)
	}
	o := apply(opts)
	if o.name == "" {
		o.name = dir
	}
	if err := validName(o.name); err != nil {
		return nil, f.invalid("name", o.name, err)
	}
	if f.names[o.name] {
		return nil, f.duplicate("name", o.name)
	}
	if f.dirs[dir] || f.outputs[dir] {
		return nil, f.duplicate("dir", dir)
	}

	child := newFolder(f.root, f, dir, o.name)
	f.names[o.name] = true
	f.dirs[dir] = true
	f.folders = append(f.folders, child)
	return child, nil
}

// Child returns the child folder mounted at dir.
func (f *Folder) Child(dir string) (*Folder, bool) {
	for _, c := range f.folders {
		if c.dir == dir {
			return c, true
		}
	}
	return nil, false
}

func (f *Folder) claim(name, output string) {
	f.names[name] = true
	f.outputs[output] = true
}

func (f *Folder) duplicate(field, value string) error {
	return serrors.WrapError(ErrDuplicateName, serrors.CategoryAlreadyExists, "duplicate "+field+" in folder").
		WithContext("folder", f.display()).
		WithContext(field, value).
		Build()
}

func (f *Folder) invalid(field, value string, err error) error {
	return serrors.WrapError(err, serrors.CategoryValidation, "invalid "+field).
		WithContext("folder", f.display()).
		WithContext(field, value).
		Build()
}

func (f *Folder) display() string {
	if f.parent == nil {
		return "/"
	}
	return f.RelDir()
}

func validSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return ErrInvalidName
	}
	return nil
}

func validName(s string) error {
	if err := validSegment(s); err != nil {
		return err
	}
	// Dots separate folders in endpoint paths.
	if strings.Contains(s, ".") {
		return ErrInvalidName
	}
	return nil
}
