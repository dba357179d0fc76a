// Package templates is the host template environment: html/template with a
// layered loader and file-level inheritance.
//
// A template pulls in another file by referencing it by name, for example
// {{template "layout.html" .}}. Referenced files are loaded from the first
// source that has them, and blocks the referencing template defines take
// precedence over the referenced file's own defaults:
//
//	{{/* about.html */}}
//	{{define "content"}}About us{{end}}
//	{{template "layout.html" .}}
//
//	{{/* layout.html */}}
//	<main>{{block "content" .}}empty{{end}}</main>
package templates

import (
	"bytes"
	stderrors "errors"
	"html/template"
	"io/fs"
	"maps"
	"sync"
	"text/template/parse"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// ErrTemplateNotFound is returned when no source holds the requested template.
var ErrTemplateNotFound = stderrors.New("template not found")

// Environment renders named templates from an ordered list of sources.
// It is safe for concurrent use.
type Environment struct {
	mu      sync.RWMutex
	sources []fs.FS
	funcs   template.FuncMap
}

// New creates an environment reading from sources in priority order.
func New(sources ...fs.FS) *Environment {
	return &Environment{
		sources: append([]fs.FS(nil), sources...),
		funcs:   template.FuncMap{},
	}
}

// AddSource appends a fallback source, consulted after every existing one.
func (e *Environment) AddSource(fsys fs.FS) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, fsys)
}

// Funcs adds functions to the template func map. Later registrations
// replace earlier ones with the same name.
func (e *Environment) Funcs(funcs template.FuncMap) {
	e.mu.Lock()
	defer e.mu.Unlock()
	maps.Copy(e.funcs, funcs)
}

// HasFunc reports whether a func with the given name is registered.
func (e *Environment) HasFunc(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.funcs[name]
	return ok
}

func (e *Environment) snapshot() ([]fs.FS, template.FuncMap) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]fs.FS(nil), e.sources...), maps.Clone(e.funcs)
}

// Source returns the raw source of the named template.
func (e *Environment) Source(name string) ([]byte, error) {
	sources, _ := e.snapshot()
	return read(sources, name)
}

// Exists reports whether any source holds the named template.
func (e *Environment) Exists(name string) bool {
	_, err := e.Source(name)
	return err == nil
}

func read(sources []fs.FS, name string) ([]byte, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, serrors.WrapError(ErrTemplateNotFound, serrors.CategoryNotFound, "invalid template name").
			WithContext("template", name).
			Build()
	}
	for _, fsys := range sources {
		data, err := fs.ReadFile(fsys, name)
		if err == nil {
			return data, nil
		}
		if !stderrors.Is(err, fs.ErrNotExist) {
			return nil, serrors.WrapError(err, serrors.CategoryFileSystem, "failed to read template").
				WithContext("template", name).
				Build()
		}
	}
	return nil, serrors.WrapError(ErrTemplateNotFound, serrors.CategoryNotFound, "template not found").
		WithContext("template", name).
		Build()
}

// Parse parses src as the template called name and loads every template
// file it references, directly or through other loaded files.
func (e *Environment) Parse(name, src string) (*template.Template, error) {
	sources, funcs := e.snapshot()

	root, err := template.New(name).Funcs(funcs).Parse(src)
	if err != nil {
		return nil, syntaxError(err, name)
	}

	var pending []string
	for _, t := range root.Templates() {
		if t.Tree != nil {
			pending = append(pending, references(t.Tree)...)
		}
	}

	seen := map[string]bool{name: true}
	for len(pending) > 0 {
		ref := pending[0]
		pending = pending[1:]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if defined(root, ref) {
			continue
		}

		body, err := read(sources, ref)
		if err != nil {
			return nil, annotate(err, name)
		}
		sub, err := template.New(ref).Funcs(funcs).Parse(string(body))
		if err != nil {
			return nil, syntaxError(err, ref)
		}
		for _, t := range sub.Templates() {
			if t.Tree == nil || defined(root, t.Name()) {
				continue
			}
			if _, err := root.AddParseTree(t.Name(), t.Tree); err != nil {
				return nil, syntaxError(err, ref)
			}
			pending = append(pending, references(t.Tree)...)
		}
	}
	return root, nil
}

// RenderTemplate loads the named template from the sources and executes it.
func (e *Environment) RenderTemplate(name string, data map[string]any) (string, error) {
	src, err := e.Source(name)
	if err != nil {
		return "", err
	}
	return e.RenderString(name, string(src), data)
}

// RenderString executes src as a template called name.
func (e *Environment) RenderString(name, src string, data map[string]any) (string, error) {
	tpl, err := e.Parse(name, src)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", serrors.WrapError(err, serrors.CategoryTemplate, "template execution failed").
			WithContext("template", name).
			Build()
	}
	return buf.String(), nil
}

// defined reports whether name has a non-empty body in set.
func defined(set *template.Template, name string) bool {
	t := set.Lookup(name)
	return t != nil && t.Tree != nil && t.Tree.Root != nil && !parse.IsEmptyTree(t.Tree.Root)
}

func syntaxError(err error, name string) error {
	return serrors.WrapError(err, serrors.CategoryTemplate, "invalid template syntax").
		WithContext("template", name).
		Build()
}

func annotate(err error, referencedBy string) error {
	if ce, ok := serrors.AsClassified(err); ok {
		b := serrors.WrapError(ce.Cause(), ce.Category(), ce.Message()).WithSeverity(ce.Severity())
		for k, v := range ce.Context() {
			b = b.WithContext(k, v)
		}
		return b.WithContext("referenced_by", referencedBy).Build()
	}
	return err
}
