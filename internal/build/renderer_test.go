package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/metrics"
	"git.home.luguber.info/inful/spark/internal/site"
	"git.home.luguber.info/inful/spark/internal/templates"
	"git.home.luguber.info/inful/spark/internal/urls"
)

type testHost struct {
	*templates.Environment
	ambient map[string]any
}

func (h testHost) TemplateContext() map[string]any { return h.ambient }

func newHost(dir string) testHost {
	return testHost{Environment: templates.New(os.DirFS(dir)), ambient: map[string]any{"site": "Spark"}}
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// fixture lays out a small site and returns the pages dir and its tree.
func fixture(t *testing.T) (string, *site.Root) {
	t.Helper()
	pages := t.TempDir()
	writeFile(t, pages, "layout.html", `<title>{{.title}} | {{.site}}</title>{{block "content" .}}{{end}}`)
	writeFile(t, pages, "index.html", `{{define "content"}}home{{end}}{{template "layout.html" .}}`)
	writeFile(t, pages, "about.html", `{{define "content"}}about {{.who}}{{end}}{{template "layout.html" .}}`)
	writeFile(t, pages, "site.css", "body{}")
	writeFile(t, pages, "blog/post.md", "---\ntitle: Post\n---\n{{ range .tags }}\n\n* {{ . }}\n\n{{ end }}\n")
	writeFile(t, pages, "blog/cover.png", "png")

	root, err := site.NewRoot(pages)
	require.NoError(t, err)
	_, err = root.Home("index.html", site.WithParams(map[string]any{"title": "Home"}))
	require.NoError(t, err)
	_, err = root.Page("about.html", site.WithParams(map[string]any{"title": "About", "who": "us"}))
	require.NoError(t, err)
	blog, err := root.Folder("blog")
	require.NoError(t, err)
	_, err = blog.MarkdownPage("post.md", site.WithParams(map[string]any{"tags": []string{"go", "web"}}))
	require.NoError(t, err)
	return pages, root
}

func TestRun_WritesTree(t *testing.T) {
	pages, root := fixture(t)
	out := filepath.Join(t.TempDir(), "static")

	report, err := New(root, newHost(pages), out, WithReport(true)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, report.Status)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 3, report.Rendered())

	require.Equal(t, "<title>Home | Spark</title>home", readFile(t, out, "index.html"))
	require.Equal(t, "<title>About | Spark</title>about us", readFile(t, out, "about.html"))
	post := readFile(t, out, "blog/post.html")
	require.Contains(t, post, "<li>go</li>")
	require.Contains(t, post, "<li>web</li>")

	require.Equal(t, "body{}", readFile(t, out, "site.css"))
	require.Equal(t, "png", readFile(t, out, "blog/cover.png"))
	require.NoFileExists(t, filepath.Join(out, "layout.html"))
	require.ElementsMatch(t, []string{"site.css", "blog/cover.png"}, report.Assets)

	saved, err := ReadReport(out)
	require.NoError(t, err)
	require.Equal(t, report.RunID, saved.RunID)
	require.Equal(t, []string{"index.html", "about.html", "blog/post.html"}, outputsOf(saved))
	require.NotEmpty(t, saved.Pages[2].Fingerprint)
	require.Empty(t, saved.Pages[0].Fingerprint)
}

func outputsOf(r *Report) []string {
	var out []string
	for _, p := range r.Pages {
		out = append(out, p.Output)
	}
	return out
}

func TestRun_PathsMatchResolver(t *testing.T) {
	pages, root := fixture(t)
	out := t.TempDir()

	_, err := New(root, newHost(pages), out).Run(context.Background())
	require.NoError(t, err)

	resolver := urls.New(root, urls.Options{Prefix: "static/"})
	for _, p := range root.AllPages() {
		rel, err := resolver.Path(p.Endpoint())
		require.NoError(t, err)
		if p.IsHome() {
			rel = "index.html"
		}
		require.FileExists(t, filepath.Join(out, filepath.FromSlash(rel)))
	}
}

func TestRun_Deterministic(t *testing.T) {
	pages, root := fixture(t)
	out := t.TempDir()
	r := New(root, newHost(pages), out)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	first := readFile(t, out, "blog/post.html")

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, readFile(t, out, "blog/post.html"))
}

func TestRun_AbortsOnFirstFailure(t *testing.T) {
	pages, root := fixture(t)
	require.NoError(t, os.Remove(filepath.Join(pages, "about.html")))
	out := t.TempDir()

	report, err := New(root, newHost(pages), out).Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, templates.ErrTemplateNotFound)
	require.True(t, serrors.HasCategory(err, serrors.CategoryNotFound))

	ce, ok := serrors.AsClassified(err)
	require.True(t, ok)
	page, _ := ce.Context().GetString("page")
	require.Equal(t, "about.html", page)

	require.Equal(t, StatusFailed, report.Status)
	require.FileExists(t, filepath.Join(out, "index.html"))
	require.NoFileExists(t, filepath.Join(out, "blog", "post.html"))
	require.Len(t, report.Pages, 2)
	require.Equal(t, 1, report.Failed())
}

func TestRun_ContinueOnError(t *testing.T) {
	pages, root := fixture(t)
	writeFile(t, pages, "about.html", "{{ if }}")
	require.NoError(t, os.Remove(filepath.Join(pages, "blog", "post.md")))
	out := t.TempDir()

	report, err := New(root, newHost(pages), out, WithContinueOnError(true)).Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPagesFailed)
	require.True(t, serrors.HasCategory(err, serrors.CategoryRender))
	require.Contains(t, err.Error(), "2 of 3 pages failed")

	require.Equal(t, StatusPartial, report.Status)
	require.Equal(t, 1, report.Rendered())
	require.FileExists(t, filepath.Join(out, "index.html"))
	require.FileExists(t, filepath.Join(out, "blog", "cover.png"))
}

func TestRun_Configuration(t *testing.T) {
	pages, root := fixture(t)

	_, err := New(nil, newHost(pages), t.TempDir()).Run(context.Background())
	require.ErrorIs(t, err, ErrNoRoot)
	require.True(t, serrors.HasCategory(err, serrors.CategoryConfig))

	_, err = New(root, newHost(pages), "").Run(context.Background())
	require.ErrorIs(t, err, ErrNoOutputDir)

	_, err = New(root, newHost(pages), filepath.Join(pages, "out")).Run(context.Background())
	require.ErrorIs(t, err, ErrOutputOverlaps)

	_, err = New(root, newHost(pages), filepath.Dir(pages)).Run(context.Background())
	require.ErrorIs(t, err, ErrOutputOverlaps)
}

func TestRun_Clean(t *testing.T) {
	pages, root := fixture(t)
	out := t.TempDir()
	writeFile(t, out, "stale.html", "old")

	_, err := New(root, newHost(pages), out).Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(out, "stale.html"))

	_, err = New(root, newHost(pages), out, WithClean(true)).Run(context.Background())
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(out, "stale.html"))
	require.FileExists(t, filepath.Join(out, "index.html"))
}

func TestRun_WithoutAssets(t *testing.T) {
	pages, root := fixture(t)
	out := t.TempDir()

	report, err := New(root, newHost(pages), out, WithCopyAssets(false)).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Assets)
	require.NoFileExists(t, filepath.Join(out, "site.css"))
}

func TestRun_Canceled(t *testing.T) {
	pages, root := fixture(t)
	out := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := New(root, newHost(pages), out).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StatusCanceled, report.Status)
	require.Empty(t, report.Pages)
}

func TestRun_VerifiesLinks(t *testing.T) {
	pages, root := fixture(t)
	writeFile(t, pages, "about.html", `<a href="/static/">home</a><a href="/static/blog/missing.html">x</a><a href="blog/post.html">post</a>`)
	out := t.TempDir()

	report, err := New(root, newHost(pages), out, WithLinkVerification("/static/")).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.BrokenLinks, 1)
	require.Equal(t, "blog/missing.html", report.BrokenLinks[0].Target)
	require.Equal(t, "about.html", report.BrokenLinks[0].Page)
}

func TestTargetRejectsEscapes(t *testing.T) {
	r := New(nil, nil, t.TempDir())
	_, err := r.target("../outside.html")
	require.ErrorIs(t, err, ErrOutsideOutput)
	_, err = r.target("")
	require.ErrorIs(t, err, ErrOutsideOutput)

	got, err := r.target("blog/post.html")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(r.outputDir, "blog", "post.html"), got)
}

func TestAssets(t *testing.T) {
	pages, root := fixture(t)
	writeFile(t, pages, site.DeclarationFile, "pages: []\n")
	writeFile(t, pages, ".DS_Store", "x")
	writeFile(t, pages, "partial.tmpl", "x")

	assets, err := Assets(root.Top())
	require.NoError(t, err)
	require.Equal(t, []string{"site.css"}, assets)

	missing, err := root.Folder("nowhere")
	require.NoError(t, err)
	assets, err = Assets(missing)
	require.NoError(t, err)
	require.Empty(t, assets)
}

type countingRecorder struct {
	metrics.NoopRecorder
	pages    map[bool]int
	outcomes []metrics.RenderOutcomeLabel
	bytes    int
}

func (c *countingRecorder) ObservePageDuration(_ string, _ time.Duration, ok bool) { c.pages[ok]++ }
func (c *countingRecorder) IncRenderOutcome(o metrics.RenderOutcomeLabel)          { c.outcomes = append(c.outcomes, o) }
func (c *countingRecorder) AddBytesWritten(n int)                                  { c.bytes += n }

func TestRun_RecordsMetrics(t *testing.T) {
	pages, root := fixture(t)
	rec := &countingRecorder{pages: map[bool]int{}}

	_, err := New(root, newHost(pages), t.TempDir(), WithRecorder(rec)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, rec.pages[true])
	require.Equal(t, []metrics.RenderOutcomeLabel{metrics.OutcomeSuccess}, rec.outcomes)
	require.Positive(t, rec.bytes)
}
