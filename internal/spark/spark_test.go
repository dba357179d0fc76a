package spark

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spark/internal/app"
	"git.home.luguber.info/inful/spark/internal/build"
	"git.home.luguber.info/inful/spark/internal/config"
	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/site"
	"git.home.luguber.info/inful/spark/internal/urls"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

// newSite lays out templates and pages below a temp dir and returns an app
// configured for it.
func newSite(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "templates/layout.html",
		`<title>{{ .title }} | {{ .site_name }}</title>{{ block "content" . }}{{ end }}`)
	writeFile(t, dir, "pages/pages.yaml", "home:\n  template: index.html\n  params: {title: Home}\npages:\n  - template: about.html\n    params: {title: About}\n")
	writeFile(t, dir, "pages/index.html",
		`{{ define "content" }}<a href="{{ spark_url "about" }}">about</a> <a href="{{ url_for "login" }}">login</a>{{ end }}{{ template "layout.html" . }}`)
	writeFile(t, dir, "pages/about.html", `{{ define "content" }}about{{ end }}{{ template "layout.html" . }}`)
	writeFile(t, dir, "pages/blog/pages.yaml", "pages: [post.md]\n")
	writeFile(t, dir, "pages/blog/post.md", "# First Post\n\nBack [home]({{ spark_url \"index\" }}).\n")
	writeFile(t, dir, "pages/blog/cover.png", "png")

	cfg := config.Default()
	cfg.SetBaseDir(dir)
	cfg.Templates.Folder = "templates"
	cfg.Params = map[string]any{"site_name": "Demo"}

	a := app.New(cfg)
	require.NoError(t, a.Route("login", "GET /login", http.NotFoundHandler()))
	return a
}

func TestInit_Twice(t *testing.T) {
	a := newSite(t)
	s, err := Init(a)
	require.NoError(t, err)

	got, ok := From(a)
	require.True(t, ok)
	require.Same(t, s, got)

	_, err = Init(a)
	require.True(t, serrors.HasCategory(err, serrors.CategoryAlreadyExists))
}

func TestRender_WithoutTree(t *testing.T) {
	s, err := Init(newSite(t))
	require.NoError(t, err)

	report, err := s.Render(context.Background())
	require.ErrorIs(t, err, build.ErrNoRoot)
	require.True(t, serrors.HasCategory(err, serrors.CategoryConfig))
	require.Equal(t, build.StatusFailed, report.Status)

	_, err = s.URL("about")
	require.True(t, serrors.HasCategory(err, serrors.CategoryConfig))
}

func TestRenderCommand(t *testing.T) {
	a := newSite(t)
	s, err := Init(a)
	require.NoError(t, err)
	_, err = s.Load()
	require.NoError(t, err)

	out := t.TempDir()
	require.NoError(t, a.RunCommand(context.Background(), CommandRender, []string{out}))

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "<title>Home | Demo</title>")
	require.Contains(t, string(index), `href="/static/about.html"`)
	require.Contains(t, string(index), `href="/login"`)

	post, err := os.ReadFile(filepath.Join(out, "blog", "post.html"))
	require.NoError(t, err)
	require.Contains(t, string(post), `<h1 id="first-post">First Post</h1>`)
	require.Contains(t, string(post), `href="/static/"`)

	_, err = os.Stat(filepath.Join(out, "blog", "cover.png"))
	require.NoError(t, err)
}

func TestURLFor(t *testing.T) {
	s, err := Init(newSite(t))
	require.NoError(t, err)

	// Before a tree exists url_for still reaches app routes.
	u, err := s.URLFor("login")
	require.NoError(t, err)
	require.Equal(t, "/login", u)

	_, err = s.Load()
	require.NoError(t, err)

	u, err = s.URLFor("blog.post")
	require.NoError(t, err)
	require.Equal(t, "/static/blog/post.html", u)

	u, err = s.URLFor("blog", "cover.png")
	require.NoError(t, err)
	require.Equal(t, "/static/blog/cover.png", u)

	_, err = s.URLFor("nowhere")
	require.ErrorIs(t, err, urls.ErrPageNotFound)
}

func TestHandler_ServesLive(t *testing.T) {
	a := newSite(t)
	s, err := Init(a)
	require.NoError(t, err)
	_, err = s.Load()
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	get := func(p string) (int, string, string) {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
	}

	code, ctype, body := get("/static/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, ctype, "text/html")
	require.Contains(t, body, "<title>Home | Demo</title>")

	code, _, body = get("/static/blog/post.html")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "First Post")

	code, _, body = get("/static/blog/cover.png")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "png", body)

	code, _, _ = get("/static/blog/post.md")
	require.Equal(t, http.StatusNotFound, code)

	code, _, _ = get("/static/pages.yaml")
	require.Equal(t, http.StatusNotFound, code)
}

func TestHomeOutputOverride(t *testing.T) {
	a := newSite(t)
	s, err := Init(a)
	require.NoError(t, err)

	root, err := s.NewRoot()
	require.NoError(t, err)
	_, err = root.Home("index.html", site.WithOutput("start.html"),
		site.WithParams(map[string]any{"title": "Home"}))
	require.NoError(t, err)
	_, err = root.Page("about.html")
	require.NoError(t, err)
	s.SetRoot(root)

	u, err := s.URL("index")
	require.NoError(t, err)
	require.Equal(t, "/static/start.html", u)

	out := t.TempDir()
	_, err = s.RenderTo(context.Background(), out)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "start.html"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "index.html"))
	require.True(t, os.IsNotExist(err))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	for _, p := range []string{"/static/", "/static/start.html"} {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, p)
		require.Contains(t, string(body), "<title>Home | Demo</title>", p)
	}
}

func TestSetRoot_Programmatic(t *testing.T) {
	s, err := Init(newSite(t))
	require.NoError(t, err)

	root, err := s.NewRoot()
	require.NoError(t, err)
	_, err = root.Page("about.html")
	require.NoError(t, err)
	s.SetRoot(root)

	u, err := s.URL("about")
	require.NoError(t, err)
	require.Equal(t, "/static/about.html", u)
	require.Same(t, root, s.Root())
}
