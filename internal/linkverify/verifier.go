// Package linkverify checks that links between rendered pages resolve to
// files in the output directory.
package linkverify

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BrokenLink is an internal link whose target is missing from the output.
type BrokenLink struct {
	Page   string // Output-relative path of the page holding the link
	URL    string // Link as written in the page
	Target string // Output-relative path the link resolved to
}

func (b BrokenLink) String() string {
	return fmt.Sprintf("%s: %s -> %s", b.Page, b.URL, b.Target)
}

// Verifier checks rendered pages for links into the static tree that do not resolve.
type Verifier struct {
	outputDir string
	base      *url.URL
}

// New returns a Verifier for outputDir. baseURL is the public URL the output
// directory is mounted at, e.g. "/static/" or "https://example.com/static/".
func New(outputDir, baseURL string) (*Verifier, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &Verifier{outputDir: outputDir, base: base}, nil
}

// Verify checks every page (output-relative, slash separated) and returns
// the links that point inside the static tree but have no file behind them.
// Links leaving the tree (other hosts, live application routes) are ignored.
func (v *Verifier) Verify(ctx context.Context, pages []string) ([]BrokenLink, error) {
	var broken []BrokenLink
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return broken, err
		}
		links, err := ExtractLinks(filepath.Join(v.outputDir, filepath.FromSlash(page)))
		if err != nil {
			return broken, err
		}
		for _, link := range links {
			if !ShouldVerifyLink(link) {
				continue
			}
			target, ok := v.Target(page, link.URL)
			if !ok {
				continue
			}
			if !v.exists(target) {
				broken = append(broken, BrokenLink{Page: page, URL: link.URL, Target: target})
			}
		}
	}
	return broken, nil
}

// Target maps a link found on page to an output-relative path. It reports
// false when the link points outside the static tree.
func (v *Verifier) Target(page, link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host != "" && v.base.Host != "" && !strings.EqualFold(u.Host, v.base.Host) {
		return "", false
	}
	if u.Host != "" && v.base.Host == "" {
		return "", false
	}

	pageURL := &url.URL{Path: v.base.Path + page}
	resolved := pageURL.ResolveReference(&url.URL{Path: u.Path})
	if u.Path == "" {
		resolved = pageURL
	}

	p := resolved.Path
	if p+"/" == v.base.Path {
		p = v.base.Path
	}
	if !strings.HasPrefix(p, v.base.Path) {
		return "", false
	}
	rel := strings.TrimPrefix(p, v.base.Path)
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}
	return path.Clean(rel), true
}

func (v *Verifier) exists(rel string) bool {
	info, err := os.Stat(filepath.Join(v.outputDir, filepath.FromSlash(rel)))
	if err != nil {
		return false
	}
	if info.IsDir() {
		_, err = os.Stat(filepath.Join(v.outputDir, filepath.FromSlash(rel), "index.html"))
		return err == nil
	}
	return true
}
