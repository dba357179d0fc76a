package site

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

// DeclarationFile is the per-directory file declaring a folder's pages.
const DeclarationFile = "pages.yaml"

// Declaration is the content of one pages.yaml.
type Declaration struct {
	// Name overrides the folder (or root) endpoint name.
	Name string `yaml:"name,omitempty"`
	// Home declares the site home page; only valid in the root declaration.
	Home *PageDeclaration `yaml:"home,omitempty"`
	// Pages are declared in order.
	Pages []PageDeclaration `yaml:"pages,omitempty"`
	// Folders lists child directories in order. When empty, sub-directories
	// holding a pages.yaml are used in lexical order.
	Folders []string `yaml:"folders,omitempty"`
}

// PageDeclaration declares one page. In YAML it is either a mapping or a
// bare template file name.
type PageDeclaration struct {
	Template string         `yaml:"template"`
	Name     string         `yaml:"name,omitempty"`
	Kind     string         `yaml:"kind,omitempty"`
	Output   string         `yaml:"output,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

var pageDeclarationKeys = map[string]bool{"template": true, "name": true, "kind": true, "output": true, "params": true}

// UnmarshalYAML accepts the scalar shorthand and rejects unknown keys.
func (d *PageDeclaration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Template = node.Value
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: page must be a file name or a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !pageDeclarationKeys[key.Value] {
			return fmt.Errorf("line %d: field %s not found in page declaration", key.Line, key.Value)
		}
	}
	type plain PageDeclaration
	return node.Decode((*plain)(d))
}

func (d PageDeclaration) options() []Option {
	var opts []Option
	if d.Name != "" {
		opts = append(opts, WithName(d.Name))
	}
	if d.Output != "" {
		opts = append(opts, WithOutput(d.Output))
	}
	if len(d.Params) > 0 {
		opts = append(opts, WithParams(d.Params))
	}
	return opts
}

// ParseDeclaration decodes a pages.yaml document.
func ParseDeclaration(data []byte) (*Declaration, error) {
	var decl Declaration
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&decl); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, err
	}
	return &decl, nil
}

// ReadDeclaration reads and decodes the declaration file at path.
func ReadDeclaration(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, serrors.WrapError(err, serrors.CategoryConfig, "declaration file not found").
				WithContext("path", path).
				Build()
		}
		return nil, serrors.WrapError(err, serrors.CategoryFileSystem, "failed to read declaration file").
			WithContext("path", path).
			Build()
	}
	decl, err := ParseDeclaration(data)
	if err != nil {
		return nil, serrors.WrapError(err, serrors.CategoryConfig, "invalid declaration file").
			WithContext("path", path).
			Build()
	}
	return decl, nil
}

// Load builds the tree declared by the pages.yaml files under pagesDir.
func Load(pagesDir string, opts ...Option) (*Root, error) {
	info, err := os.Stat(pagesDir)
	if err != nil || !info.IsDir() {
		return nil, serrors.ConfigError("pages folder not found").
			WithContext("path", pagesDir).
			Build()
	}

	decl, err := ReadDeclaration(filepath.Join(pagesDir, DeclarationFile))
	if err != nil {
		return nil, err
	}

	if decl.Name != "" {
		opts = append(opts, WithName(decl.Name))
	}
	root, err := NewRoot(pagesDir, opts...)
	if err != nil {
		return nil, err
	}

	if decl.Home != nil {
		if _, err := root.Home(decl.Home.Template, decl.Home.options()...); err != nil {
			return nil, declarationError(err, filepath.Join(pagesDir, DeclarationFile))
		}
	}
	if err := loadFolder(root, root.top, decl); err != nil {
		return nil, err
	}
	return root, nil
}

func loadFolder(root *Root, f *Folder, decl *Declaration) error {
	file := filepath.Join(f.SourceDir(), DeclarationFile)

	for _, pd := range decl.Pages {
		if _, err := f.Add(pd.Kind, pd.Template, pd.options()...); err != nil {
			return declarationError(err, file)
		}
	}

	children := decl.Folders
	if len(children) == 0 {
		var err error
		if children, err = discoverFolders(f.SourceDir()); err != nil {
			return err
		}
	}

	for _, dir := range children {
		childFile := filepath.Join(f.SourceDir(), filepath.FromSlash(dir), DeclarationFile)
		childDecl, err := ReadDeclaration(childFile)
		if err != nil {
			return err
		}
		if childDecl.Home != nil {
			return serrors.ConfigError("home may only be declared in the root declaration").
				WithContext("path", childFile).
				Build()
		}

		var opts []Option
		if childDecl.Name != "" {
			opts = append(opts, WithName(childDecl.Name))
		}
		child, err := root.FolderFor(childFile, opts...)
		if err != nil {
			return declarationError(err, childFile)
		}
		if err := loadFolder(root, child, childDecl); err != nil {
			return err
		}
	}
	return nil
}

// discoverFolders lists the sub-directories of dir holding a declaration
// file, in lexical order. Hidden directories are skipped.
func discoverFolders(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, serrors.WrapError(err, serrors.CategoryFileSystem, "failed to list pages folder").
			WithContext("path", dir).
			Build()
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), DeclarationFile)); err == nil {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

func declarationError(err error, file string) error {
	category := serrors.CategoryConfig
	if ce, ok := serrors.AsClassified(err); ok {
		category = ce.Category()
	}
	return serrors.WrapError(err, category, "invalid page declaration").
		WithContext("path", file).
		Build()
}
