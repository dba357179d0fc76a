package build

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
	"git.home.luguber.info/inful/spark/internal/site"
)

// Assets lists the files of folder that are copied verbatim: regular,
// visible files that are neither declarations nor templates. Names are
// output-relative slash paths.
func Assets(f *site.Folder) ([]string, error) {
	entries, err := os.ReadDir(f.SourceDir())
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, serrors.WrapError(err, serrors.CategoryFileSystem, "failed to list folder").
			WithContext("folder", f.RelDir()).
			Build()
	}

	declared := map[string]bool{}
	for _, p := range f.Pages() {
		declared[p.Template()] = true
	}
	if f.Parent() == nil {
		if home := f.Root().HomePage(); home != nil {
			declared[home.Template()] = true
		}
	}

	var assets []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if name == site.DeclarationFile || declared[name] || site.IsTemplateFile(name) {
			continue
		}
		assets = append(assets, path.Join(f.RelDir(), name))
	}
	return assets, nil
}

func (r *Renderer) copyFolderAssets(ctx context.Context, report *Report) ([]string, error) {
	written := map[string]bool{}
	for _, p := range report.Pages {
		written[p.Output] = true
	}

	var copied []string
	for _, f := range r.root.AllFolders() {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		assets, err := Assets(f)
		if err != nil {
			return copied, err
		}
		for _, rel := range assets {
			if written[rel] {
				r.logger.Warn("Asset shadowed by a page output", "asset", rel)
				continue
			}
			src := filepath.Join(r.root.BaseDir(), filepath.FromSlash(rel))
			if err := r.copyFile(src, rel); err != nil {
				return copied, err
			}
			copied = append(copied, rel)
		}
	}
	return copied, nil
}

func (r *Renderer) copyFile(src, rel string) error {
	dst, err := r.target(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to create output folder").
			WithContext("output", dst).
			Build()
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to open asset").
			WithContext("path", src).
			Build()
	}
	defer func() { _ = in.Close() }()

	// #nosec G302 G304 -- assets are public static files from the pages folder
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to create asset").
			WithContext("output", dst).
			Build()
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to copy asset").
			WithContext("output", dst).
			Build()
	}
	if err := out.Close(); err != nil {
		return serrors.WrapError(err, serrors.CategoryFileSystem, "failed to close asset").
			WithContext("output", dst).
			Build()
	}
	return nil
}
