package site

import (
	"context"
	"path"
	"slices"
	"strings"
	"sync"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// Built-in page kinds.
const (
	KindPage     = "page"
	KindMarkdown = "markdown"
)

// RenderFunc renders a page of one kind. data is the merged template
// context, already holding ambient values, params and the page itself.
type RenderFunc func(ctx context.Context, p *Page, host Templater, data map[string]any) (string, error)

// Kind describes a family of pages sharing a source format.
type Kind struct {
	Name string
	// Extensions are the lower-case template extensions (with dot) that
	// select this kind when none is given explicitly.
	Extensions []string
	Render     RenderFunc
}

var registry = struct {
	sync.RWMutex
	kinds map[string]Kind
	order []string
}{kinds: map[string]Kind{}}

func init() {
	mustRegister(Kind{
		Name:       KindPage,
		Extensions: []string{".html", ".htm", ".xml", ".txt", ".tmpl", ".gohtml"},
		Render:     renderTemplate,
	})
	mustRegister(Kind{
		Name:       KindMarkdown,
		Extensions: []string{".md", ".markdown"},
		Render:     renderMarkdown,
	})
}

func mustRegister(k Kind) {
	if err := RegisterKind(k); err != nil {
		panic(err)
	}
}

// RegisterKind makes a page kind available to Folder.Add and to page
// declarations. Kind names are unique.
func RegisterKind(k Kind) error {
	if k.Name == "" || k.Render == nil {
		return serrors.ValidationError("page kind needs a name and a render function").Build()
	}
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.kinds[k.Name]; ok {
		return serrors.WrapError(ErrDuplicateName, serrors.CategoryAlreadyExists, "page kind already registered").
			WithContext("kind", k.Name).
			Build()
	}
	exts := make([]string, len(k.Extensions))
	for i, e := range k.Extensions {
		exts[i] = strings.ToLower(e)
	}
	k.Extensions = exts
	registry.kinds[k.Name] = k
	registry.order = append(registry.order, k.Name)
	return nil
}

// LookupKind returns the registered kind with the given name.
func LookupKind(name string) (Kind, bool) {
	registry.RLock()
	defer registry.RUnlock()
	k, ok := registry.kinds[name]
	return k, ok
}

// KindFor picks the kind for a template file by its extension, falling
// back to plain pages.
func KindFor(template string) Kind {
	ext := strings.ToLower(path.Ext(template))
	registry.RLock()
	defer registry.RUnlock()
	for _, name := range registry.order {
		k := registry.kinds[name]
		if slices.Contains(k.Extensions, ext) {
			return k
		}
	}
	return registry.kinds[KindPage]
}

// IsTemplateFile reports whether name has the extension of any registered kind.
func IsTemplateFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return false
	}
	registry.RLock()
	defer registry.RUnlock()
	for _, k := range registry.kinds {
		if slices.Contains(k.Extensions, ext) {
			return true
		}
	}
	return false
}
