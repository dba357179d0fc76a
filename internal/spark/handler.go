package spark

import (
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/spark/internal/build"
	"git.home.luguber.info/inful/spark/internal/logfields"
	"git.home.luguber.info/inful/spark/internal/site"
)

// Handler serves the current tree live. The request path is taken from
// the "path" wildcard: pages render on every request and folder assets are
// served from the pages folder. The bare prefix serves the home page
// whatever its output. Anything else is not found.
func (s *Spark) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root := s.Root()
		if root == nil {
			http.NotFound(w, r)
			return
		}

		rel := r.PathValue("path")
		if rel == "" {
			if home := root.HomePage(); home != nil {
				s.servePage(w, r, home)
				return
			}
		}
		if rel == "" || strings.HasSuffix(rel, "/") {
			rel += site.HomeOutput
		}
		rel = strings.TrimPrefix(path.Clean("/"+rel), "/")

		if p := pageAt(root, rel); p != nil {
			s.servePage(w, r, p)
			return
		}
		if src, ok := assetAt(root, rel); ok {
			http.ServeFile(w, r, src)
			return
		}
		http.NotFound(w, r)
	})
}

func (s *Spark) servePage(w http.ResponseWriter, r *http.Request, p *site.Page) {
	out, err := p.Render(r.Context(), s.app, s.app.TemplateContext())
	if err != nil {
		s.logger.Error("Live render failed", logfields.Page(p.Endpoint()), logfields.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(p.Output()))
	if ctype == "" {
		ctype = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write([]byte(out))
}

func pageAt(root *site.Root, rel string) *site.Page {
	for _, p := range root.AllPages() {
		if p.OutputPath() == rel {
			return p
		}
	}
	return nil
}

func assetAt(root *site.Root, rel string) (string, bool) {
	dir := path.Dir(rel)
	if dir == "." {
		dir = ""
	}
	for _, f := range root.AllFolders() {
		if f.RelDir() != dir {
			continue
		}
		assets, err := build.Assets(f)
		if err != nil || !slices.Contains(assets, rel) {
			return "", false
		}
		return filepath.Join(f.SourceDir(), path.Base(rel)), true
	}
	return "", false
}
