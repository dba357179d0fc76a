package urls

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/site"
)

func tree(t *testing.T) *site.Root {
	t.Helper()
	root, err := site.NewRoot(t.TempDir())
	require.NoError(t, err)

	_, err = root.Home("index.html")
	require.NoError(t, err)
	_, err = root.Page("about.html", site.WithOutput("about-us.html"))
	require.NoError(t, err)
	blog, err := root.Folder("blog")
	require.NoError(t, err)
	_, err = blog.MarkdownPage("post.md")
	require.NoError(t, err)
	_, err = blog.Page("index.html")
	require.NoError(t, err)
	docs, err := root.Folder("docs")
	require.NoError(t, err)
	_, err = docs.Page("index.html")
	require.NoError(t, err)
	_, err = docs.Page("my page.html", site.WithName("spaced"))
	require.NoError(t, err)
	return root
}

func TestURL(t *testing.T) {
	r := New(tree(t), Options{Prefix: "static/"})

	tests := []struct {
		name string
		args []any
		want string
	}{
		{"index", nil, "/static/"},
		{"about", nil, "/static/about-us.html"},
		{"post", nil, "/static/blog/post.html"},
		{"blog.post", nil, "/static/blog/post.html"},
		{"blog.index", nil, "/static/blog/index.html"},
		{"spaced", nil, "/static/docs/my%20page.html"},
		{"blog", []any{"css/site.css"}, "/static/blog/css/site.css"},
		{"root", []any{"favicon.ico"}, "/static/favicon.ico"},
		{"post", []any{"page", 2, "lang", "en"}, "/static/blog/post.html?lang=en&page=2"},
		{"blog", []any{"filename", "../../etc/passwd"}, "/static/blog/etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.URL(tt.name, tt.args...)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestURL_ExternalAndApplicationRoot(t *testing.T) {
	r := New(tree(t), Options{Prefix: "static/", ApplicationRoot: "/app", ServerName: "example.com:5000", Scheme: "https"})

	got, err := r.URL("blog.post")
	require.NoError(t, err)
	require.Equal(t, "https://example.com:5000/app/static/blog/post.html", got)
	require.Equal(t, "https://example.com:5000/app/static/", r.Base())
}

func TestURL_EmptyPrefix(t *testing.T) {
	r := New(tree(t), Options{})

	got, err := r.URL("about")
	require.NoError(t, err)
	require.Equal(t, "/about-us.html", got)
}

func TestLookupErrors(t *testing.T) {
	r := New(tree(t), Options{Prefix: "static/"})

	_, err := r.URL("missing")
	require.ErrorIs(t, err, ErrPageNotFound)
	require.True(t, serrors.HasCategory(err, serrors.CategoryNotFound))

	_, err = r.URL("blog.missing")
	require.ErrorIs(t, err, ErrPageNotFound)

	ce, ok := serrors.AsClassified(mustErr(r.Lookup("missing")))
	require.True(t, ok)
	name, _ := ce.Context().GetString("name")
	require.Equal(t, "missing", name)
}

func TestLookup_AmbiguousBareName(t *testing.T) {
	root, err := site.NewRoot(t.TempDir())
	require.NoError(t, err)
	a, _ := root.Folder("a")
	b, _ := root.Folder("b")
	_, _ = a.Page("intro.html")
	_, _ = b.Page("intro.html")

	r := New(root, Options{})
	_, err = r.Lookup("intro")
	require.ErrorIs(t, err, ErrPageNotFound)

	ce, _ := serrors.AsClassified(err)
	candidates, _ := ce.Context().GetString("candidates")
	require.Equal(t, "a.intro, b.intro", candidates)

	got, err := r.URL("b.intro")
	require.NoError(t, err)
	require.Equal(t, "/b/intro.html", got)
}

func mustErr(_ Target, err error) error { return err }

func TestFolderWithoutFilename(t *testing.T) {
	r := New(tree(t), Options{})
	_, err := r.URL("blog")
	require.ErrorIs(t, err, ErrBadArguments)
	require.True(t, serrors.HasCategory(err, serrors.CategoryValidation))
}

func TestArguments(t *testing.T) {
	v, err := Arguments("x.css")
	require.NoError(t, err)
	require.Equal(t, "x.css", v.Get(FilenameArg))

	v, err = Arguments("a", 1, "b", true)
	require.NoError(t, err)
	require.Equal(t, "a=1&b=true", v.Encode())

	_, err = Arguments("a", 1, "b")
	require.ErrorIs(t, err, ErrBadArguments)
	_, err = Arguments(1, "a")
	require.ErrorIs(t, err, ErrBadArguments)
}

// URLs without the prefix must equal the paths pages are written to.
func TestURLMatchesOutputPath(t *testing.T) {
	root := tree(t)
	r := New(root, Options{Prefix: "static/"})

	for _, p := range root.AllPages() {
		u, err := r.URL(p.Endpoint())
		require.NoError(t, err)
		rel := strings.TrimPrefix(u, "/static/")
		if p.IsHome() {
			require.Equal(t, "", rel)
			require.Equal(t, "index.html", p.OutputPath())
			continue
		}
		path, err := r.Path(p.Endpoint())
		require.NoError(t, err)
		require.Equal(t, p.OutputPath(), path)
		unescaped, err := url.PathUnescape(rel)
		require.NoError(t, err)
		require.Equal(t, p.OutputPath(), unescaped)
	}
}

func TestHomeWithOutputOverride(t *testing.T) {
	root, err := site.NewRoot(t.TempDir())
	require.NoError(t, err)
	home, err := root.Home("home.html", site.WithOutput("start.html"))
	require.NoError(t, err)

	r := New(root, Options{Prefix: "static/"})
	u, err := r.URL(home.Endpoint())
	require.NoError(t, err)
	require.Equal(t, "/static/start.html", u)

	p, err := r.Path(home.Endpoint())
	require.NoError(t, err)
	require.Equal(t, home.OutputPath(), p)
}

func TestNames(t *testing.T) {
	r := New(tree(t), Options{})
	require.Equal(t, []string{"about", "blog", "blog.index", "blog.post", "docs", "docs.index", "docs.spaced", "index", "root"}, r.Names())
}

func TestNilRoot(t *testing.T) {
	_, err := New(nil, Options{}).URL("x")
	require.ErrorIs(t, err, ErrPageNotFound)
}
