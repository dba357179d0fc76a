// Package urls resolves page and folder names to public URLs and to paths
// inside the output directory. Both are composed the same way, so a link
// built for the live application points at the file a render pass writes.
package urls

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/site"
)

var (
	// ErrPageNotFound is returned for unknown or ambiguous names.
	ErrPageNotFound = stderrors.New("page not found")
	// ErrBadArguments is returned when URL arguments do not fit the target.
	ErrBadArguments = stderrors.New("bad url arguments")
)

// FilenameArg is the argument naming a file inside a folder.
const FilenameArg = "filename"

// Options controls how public URLs are composed.
type Options struct {
	// Prefix is the mount point of the static tree below the application
	// root, e.g. "static/". Empty or ending in "/".
	Prefix string
	// ApplicationRoot is the path the application is served from. Default "/".
	ApplicationRoot string
	// ServerName makes URLs absolute when set, e.g. "example.com:5000".
	ServerName string
	// Scheme used with ServerName. Default "http".
	Scheme string
}

// Target is a named node of the tree: a page or a folder.
type Target struct {
	Page   *site.Page
	Folder *site.Folder
}

// Resolver looks up names in a page tree. The index is built on first use;
// the tree must not change afterwards.
type Resolver struct {
	root *site.Root
	opts Options

	once   sync.Once
	byPath map[string]Target
	byName map[string][]Target
}

// New returns a resolver for root.
func New(root *site.Root, opts Options) *Resolver {
	if opts.ApplicationRoot == "" {
		opts.ApplicationRoot = "/"
	}
	if opts.Scheme == "" {
		opts.Scheme = "http"
	}
	return &Resolver{root: root, opts: opts}
}

// Options returns the resolver's URL options.
func (r *Resolver) Options() Options { return r.opts }

func (r *Resolver) index() {
	r.once.Do(func() {
		r.byPath = map[string]Target{}
		r.byName = map[string][]Target{}
		if r.root == nil {
			return
		}
		_ = r.root.Walk(func(e site.Entry) error {
			if e.Page != nil {
				t := Target{Page: e.Page}
				r.byPath[e.Page.Endpoint()] = t
				r.byName[e.Page.Name()] = append(r.byName[e.Page.Name()], t)
				return nil
			}
			t := Target{Folder: e.Folder}
			endpoint := e.Folder.Endpoint()
			if endpoint == "" {
				endpoint = e.Folder.Name()
			}
			r.byPath[endpoint] = t
			if e.Folder.Parent() != nil {
				r.byName[e.Folder.Name()] = append(r.byName[e.Folder.Name()], t)
			}
			return nil
		})
	})
}

// Lookup finds a page or folder by dotted path or by bare name. A bare
// name must be unique in the tree.
func (r *Resolver) Lookup(name string) (Target, error) {
	r.index()
	if t, ok := r.byPath[name]; ok {
		return t, nil
	}
	switch matches := r.byName[name]; len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Target{}, serrors.WrapError(ErrPageNotFound, serrors.CategoryNotFound, "no page or folder with this name").
			WithContext("name", name).
			Build()
	default:
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.endpoint())
		}
		return Target{}, serrors.WrapError(ErrPageNotFound, serrors.CategoryNotFound, "ambiguous name, use a dotted path").
			WithContext("name", name).
			WithContext("candidates", strings.Join(candidates, ", ")).
			Build()
	}
}

func (t Target) endpoint() string {
	if t.Page != nil {
		return t.Page.Endpoint()
	}
	return t.Folder.Endpoint()
}

// Path returns the output-relative file path for name. Pages map to their
// output file, a home page written to site.HomeOutput to "" and folders to
// the file given by the filename argument. Remaining arguments are ignored.
func (r *Resolver) Path(name string, args ...any) (string, error) {
	p, _, err := r.resolve(name, args)
	return p, err
}

// URL returns the public URL for name. Arguments are either a single file
// name (for folders) or key/value pairs; keys the target does not use are
// appended as a query string sorted by key.
func (r *Resolver) URL(name string, args ...any) (string, error) {
	p, query, err := r.resolve(name, args)
	if err != nil {
		return "", err
	}

	u := r.Base() + escapePath(p)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// Base is the public URL of the output directory itself.
func (r *Resolver) Base() string {
	base := "/" + strings.Trim(r.opts.ApplicationRoot, "/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	base += r.opts.Prefix
	if r.opts.ServerName != "" {
		base = r.opts.Scheme + "://" + r.opts.ServerName + base
	}
	return base
}

func (r *Resolver) resolve(name string, args []any) (string, url.Values, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return "", nil, err
	}
	values, err := Arguments(args...)
	if err != nil {
		return "", nil, serrors.WrapError(err, serrors.CategoryValidation, "invalid url arguments").
			WithContext("name", name).
			Build()
	}

	if t.Page != nil {
		if t.Page.IsHome() && t.Page.Output() == site.HomeOutput {
			return "", values, nil
		}
		return t.Page.OutputPath(), values, nil
	}

	filename := values.Get(FilenameArg)
	values.Del(FilenameArg)
	filename = strings.TrimPrefix(path.Clean("/"+filename), "/")
	if filename == "" {
		return "", nil, serrors.WrapError(ErrBadArguments, serrors.CategoryValidation, "folder url needs a filename").
			WithContext("name", name).
			Build()
	}
	return path.Join(t.Folder.RelDir(), filename), values, nil
}

// Arguments turns template call arguments into values: a single argument is
// the file name, otherwise arguments are key/value pairs with string keys.
func Arguments(args ...any) (url.Values, error) {
	values := url.Values{}
	if len(args) == 1 {
		values.Set(FilenameArg, fmt.Sprint(args[0]))
		return values, nil
	}
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("%w: expected a file name or key/value pairs, got %d arguments", ErrBadArguments, len(args))
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d must be a string key, got %T", ErrBadArguments, i, args[i])
		}
		values.Add(key, fmt.Sprint(args[i+1]))
	}
	return values, nil
}

func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Names lists every resolvable dotted path in sorted order.
func (r *Resolver) Names() []string {
	r.index()
	names := make([]string, 0, len(r.byPath))
	for n := range r.byPath {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
