package app

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/urls"
)

// ErrRouteNotFound is returned by URLFor for unknown route names.
var ErrRouteNotFound = stderrors.New("route not found")

// Route is a named net/http pattern, e.g. "GET /posts/{id}".
type Route struct {
	Name    string
	Pattern string
	Handler http.Handler

	method   string
	segments []string
}

// Method is the pattern's method, or "" when it matches any.
func (r *Route) Method() string { return r.method }

// Path is the pattern's path part.
func (r *Route) Path() string { return "/" + strings.Join(r.segments, "/") }

// Route registers a handler under a unique name. Patterns follow
// net/http.ServeMux syntax without a host part and are relative to the
// application root.
func (a *App) Route(name, pattern string, h http.Handler) error {
	method, path, _ := strings.Cut(pattern, " ")
	if path == "" {
		method, path = "", pattern
	}
	path = strings.TrimSpace(path)
	if name == "" || !strings.HasPrefix(path, "/") || h == nil {
		return serrors.ValidationError("route needs a name, a handler and a path starting with /").
			WithContext("route", name).
			WithContext("pattern", pattern).
			Build()
	}

	r := &Route{
		Name:     name,
		Pattern:  pattern,
		Handler:  h,
		method:   method,
		segments: strings.Split(strings.TrimPrefix(path, "/"), "/"),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byName[name]; ok {
		return serrors.AlreadyExistsError("route already registered").
			WithContext("route", name).
			Build()
	}
	a.byName[name] = r
	a.routes = append(a.routes, r)
	return nil
}

// Routes returns the routes in registration order.
func (a *App) Routes() []*Route {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*Route(nil), a.routes...)
}

// URLFor builds the path of a named route. Arguments are key/value pairs
// filling the pattern's wildcards; the rest become a query string.
func (a *App) URLFor(name string, args ...any) (string, error) {
	a.mu.RLock()
	r, ok := a.byName[name]
	a.mu.RUnlock()
	if !ok {
		return "", serrors.WrapError(ErrRouteNotFound, serrors.CategoryNotFound, "no route with this name").
			WithContext("route", name).
			Build()
	}

	var values url.Values
	var err error
	if len(args) == 1 {
		values = url.Values{}
		if w := r.lastWildcard(); w != "" {
			values.Set(w, fmt.Sprint(args[0]))
		}
	} else if values, err = urls.Arguments(args...); err != nil {
		return "", serrors.WrapError(err, serrors.CategoryValidation, "invalid url arguments").
			WithContext("route", name).
			Build()
	}

	segments := make([]string, 0, len(r.segments))
	for _, seg := range r.segments {
		wildcard, rest := wildcardName(seg)
		switch {
		case wildcard == "":
			segments = append(segments, seg)
		case wildcard == "$":
			// matches only the exact path
		default:
			v := values.Get(wildcard)
			if v == "" && !rest {
				return "", serrors.ValidationError("missing route parameter").
					WithContext("route", name).
					WithContext("parameter", wildcard).
					Build()
			}
			values.Del(wildcard)
			if rest {
				parts := strings.Split(strings.TrimPrefix(v, "/"), "/")
				for i, p := range parts {
					parts[i] = url.PathEscape(p)
				}
				segments = append(segments, strings.Join(parts, "/"))
			} else {
				segments = append(segments, url.PathEscape(v))
			}
		}
	}

	u := strings.TrimSuffix(a.Config.URLs.ApplicationRoot, "/") + "/" + strings.Join(segments, "/")
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	return u, nil
}

// wildcardName returns the name of a {name} or {name...} segment.
func wildcardName(seg string) (name string, rest bool) {
	if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
		return "", false
	}
	name = seg[1 : len(seg)-1]
	if strings.HasSuffix(name, "...") {
		return strings.TrimSuffix(name, "..."), true
	}
	return name, false
}

func (r *Route) lastWildcard() string {
	for i := len(r.segments) - 1; i >= 0; i-- {
		if w, _ := wildcardName(r.segments[i]); w != "" && w != "$" {
			return w
		}
	}
	return ""
}
