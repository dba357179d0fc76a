// Package markdown converts markdown page sources to HTML that is still a
// valid Go template.
//
// Template actions ({{ ... }}) are swapped for inert placeholders before the
// markdown pass and restored afterwards, so goldmark never escapes their
// quotes or wraps control actions (range, if, end, ...) in paragraphs.
package markdown

import (
	"bytes"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// Options controls how markdown is converted.
type Options struct {
	// HighlightStyle is a chroma style name for fenced code blocks. Empty disables highlighting.
	HighlightStyle string
	HardWraps      bool
}

// Result is the output of a conversion.
type Result struct {
	HTML []byte
	// Title is the text of the first level-1 heading, if any.
	Title string
}

// Converter turns markdown into template-ready HTML. It is safe for concurrent use.
type Converter struct {
	md goldmark.Markdown
}

// New builds a Converter with GFM, footnotes, heading ids and optional highlighting.
func New(opts Options) *Converter {
	exts := []goldmark.Extender{extension.GFM, extension.Footnote}
	if opts.HighlightStyle != "" {
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(opts.HighlightStyle),
			highlighting.WithFormatOptions(chromahtml.TabWidth(4)),
		))
	}

	// Raw HTML must pass through: pages mix markup with markdown.
	rendererOpts := []renderer.Option{gmhtml.WithUnsafe()}
	if opts.HardWraps {
		rendererOpts = append(rendererOpts, gmhtml.WithHardWraps())
	}

	return &Converter{md: goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOpts...),
	)}
}

// Convert renders src to HTML, keeping template actions intact.
func (c *Converter) Convert(src []byte) (*Result, error) {
	protected, actions := protectActions(src)

	ids := headingIDs{parser.NewContext().IDs()}
	doc := c.md.Parser().Parse(text.NewReader(protected),
		parser.WithContext(parser.NewContext(parser.WithIDs(ids))))

	var buf bytes.Buffer
	if err := c.md.Renderer().Render(&buf, protected, doc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	return &Result{
		HTML:  restoreActions(buf.Bytes(), actions),
		Title: string(restoreActions([]byte(firstTitle(doc, protected)), actions)),
	}, nil
}

// firstTitle returns the plain text of the first level-1 heading.
func firstTitle(doc gmast.Node, source []byte) string {
	var title string
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			title = plainText(h, source)
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

func plainText(n gmast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *gmast.String:
			buf.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return buf.String()
}

// headingIDs derives heading ids from the heading text with template
// actions left out.
type headingIDs struct {
	parser.IDs
}

func (h headingIDs) Generate(value []byte, kind gmast.NodeKind) []byte {
	return h.IDs.Generate(placeholderPattern.ReplaceAll(value, nil), kind)
}
