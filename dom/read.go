package dom

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Format is markup flavor of a source document.
type Format int

const (
	FormatHTML Format = iota + 1
	FormatXHTML
	FormatMarkdown
)

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatXHTML:
		return "xhtml"
	case FormatMarkdown:
		return "markdown"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

var formatsByExt = map[string]Format{
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".xhtml":    FormatXHTML,
	".xht":      FormatXHTML,
	".xml":      FormatXHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// FormatOf detects document format by file name extension.
func FormatOf(name string) (Format, bool) {
	f, ok := formatsByExt[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// Read loads document of requested format.
func Read(r io.Reader, format Format, log *zap.Logger) (*Document, error) {
	switch format {
	case FormatHTML:
		return ReadHTML(r, log)
	case FormatXHTML:
		return ReadXHTML(r, log)
	case FormatMarkdown:
		return ReadMarkdown(r, log)
	default:
		return nil, fmt.Errorf("unsupported document format %s", format)
	}
}

// ReadXHTML loads well formed XML document honoring its encoding declaration.
func ReadXHTML(r io.Reader, log *zap.Logger) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to read xhtml: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("unable to read xhtml: no root element")
	}
	return newDocument(doc, log), nil
}

// ReadHTML loads (possibly malformed) html document, content is converted to
// UTF-8 according to its meta tags or content sniffing.
func ReadHTML(r io.Reader, log *zap.Logger) (*Document, error) {
	utf8, err := charset.NewReader(r, "")
	if err != nil {
		return nil, fmt.Errorf("unable to detect html encoding: %w", err)
	}
	root, err := html.Parse(utf8)
	if err != nil {
		return nil, fmt.Errorf("unable to parse html: %w", err)
	}
	doc := etree.NewDocument()
	appendNode(&doc.Element, root)
	return newDocument(doc, log), nil
}

// ReadMarkdown renders markdown to html and loads result. Raw html blocks are
// kept, so class attributes written in markdown source are visible to scanner.
func ReadMarkdown(r io.Reader, log *zap.Logger) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read markdown: %w", err)
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Attributes)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.CompletePage})
	out := markdown.ToHTML(src, p, renderer)

	return ReadHTML(strings.NewReader(string(out)), log)
}

// appendNode converts html node (recursively) into etree tokens under parent.
func appendNode(parent *etree.Element, n *html.Node) {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendNode(parent, c)
		}
	case html.DoctypeNode:
		parent.CreateDirective("DOCTYPE " + n.Data)
	case html.ElementNode:
		el := parent.CreateElement(n.Data)
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			el.CreateAttr(key, a.Val)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendNode(el, c)
		}
	case html.TextNode:
		parent.CreateText(n.Data)
	case html.CommentNode:
		parent.CreateComment(n.Data)
	}
}
