package dom

import (
	"slices"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap/zaptest"

	"jitcss/css"
	"jitcss/jit"
)

var classAttrs = []string{"class"}

func TestReadHTML(t *testing.T) {
	src := `<!DOCTYPE html>
<html><head><title>t</title></head>
<body class="dark">
  <div class="w-[1px] p-[2px] hidden">
    <span class="c-[red] w-[1px]">x</span>
    <img data-x="h-[1px]">
  </div>
  <p class=md:hover:bg-[#ff0000]>unquoted
</body></html>`

	doc, err := ReadHTML(strings.NewReader(src), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("ReadHTML() error = %v", err)
	}

	got := jit.Tokens(doc, classAttrs)
	want := []string{"w-[1px]", "p-[2px]", "c-[red]", "md:hover:bg-[#ff0000]"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
	if doc.Body() == nil || doc.Body().Tag != "body" {
		t.Error("body not found")
	}
	if !strings.Contains(doc.String(), "<!DOCTYPE html>") {
		t.Error("doctype lost")
	}
}

func TestReadXHTML_Charset(t *testing.T) {
	src := `<?xml version="1.0" encoding="windows-1251"?>
<html xmlns="http://www.w3.org/1999/xhtml"><body>
<p class="ta-[center]">` + "\xcf\xf0\xe8\xe2\xe5\xf2" + `</p>
</body></html>`

	doc, err := ReadXHTML(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("ReadXHTML() error = %v", err)
	}
	p := doc.Find("//p")
	if p == nil {
		t.Fatal("paragraph not found")
	}
	if p.Text() != "Привет" {
		t.Errorf("text = %q, want %q", p.Text(), "Привет")
	}
	if got := jit.Tokens(doc, classAttrs); !slices.Equal(got, []string{"ta-[center]"}) {
		t.Errorf("Tokens() = %v", got)
	}
}

func TestReadXHTML_Errors(t *testing.T) {
	if _, err := ReadXHTML(strings.NewReader(""), nil); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestReadMarkdown(t *testing.T) {
	src := "# Title\n\nSome *text*.\n\n<div class=\"bg-[#fff] p-[1rem]\">raw block</div>\n"

	doc, err := ReadMarkdown(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("ReadMarkdown() error = %v", err)
	}
	got := jit.Tokens(doc, classAttrs)
	if !slices.Equal(got, []string{"bg-[#fff]", "p-[1rem]"}) {
		t.Errorf("Tokens() = %v", got)
	}
	if doc.Find("//h1") == nil {
		t.Error("heading was not rendered")
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		want Format
		ok   bool
	}{
		{"index.html", FormatHTML, true},
		{"INDEX.HTM", FormatHTML, true},
		{"OEBPS/ch01.xhtml", FormatXHTML, true},
		{"README.md", FormatMarkdown, true},
		{"style.css", 0, false},
		{"noext", 0, false},
	}
	for _, tt := range tests {
		got, ok := FormatOf(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FormatOf(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
	if FormatMarkdown.String() != "markdown" {
		t.Error("unexpected format name")
	}
}

func TestDocument_MutationsAreBatched(t *testing.T) {
	doc := NewDocument(nil)

	var batches [][]jit.Mutation
	stop := doc.Observe(func(b []jit.Mutation) { batches = append(batches, b) })

	body := doc.Body()
	div := doc.Append(body, "div", "w-[1px]")
	doc.SetAttr(div, "title", "x")
	doc.AddClass(div, "h-[1px]", "w-[1px]")
	doc.AddClass(div, "w-[1px]") // nothing new, no mutation

	if len(batches) != 0 {
		t.Fatal("mutations must not be delivered before Flush")
	}
	if doc.Pending() != 3 {
		t.Errorf("pending = %d, want 3", doc.Pending())
	}
	if n := doc.Flush(); n != 3 {
		t.Errorf("Flush() = %d, want 3", n)
	}
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("unexpected batches %v", batches)
	}
	if got := div.SelectAttrValue("class", ""); got != "w-[1px] h-[1px]" {
		t.Errorf("class = %q", got)
	}
	if doc.Flush() != 0 {
		t.Error("empty flush must deliver nothing")
	}

	stop()
	doc.Remove(div)
	doc.Flush()
	if len(batches) != 1 {
		t.Error("stopped observer received batch")
	}
}

func TestDocument_WithEngine(t *testing.T) {
	doc, err := ReadHTML(strings.NewReader(`<body><div class="w-[1px]"></div></body>`), nil)
	if err != nil {
		t.Fatalf("ReadHTML() error = %v", err)
	}

	sheet := css.NewSheet(nil)
	e := jit.NewEngine(sheet, zaptest.NewLogger(t))
	defer e.Close()

	if rules := e.Init(doc, nil); len(rules) != 1 {
		t.Fatalf("Init produced %d rules", len(rules))
	}

	div := doc.Find("//div")
	doc.AddClass(div, "c-[red]")
	if sheet.Len() != 1 {
		t.Fatal("rule added before mutations were flushed")
	}
	doc.Flush()
	if sheet.Len() != 2 {
		t.Fatalf("sheet has %d rules after flush, want 2", sheet.Len())
	}

	if err := doc.InsertHTML(doc.Body(), `<section class="dark:c-[#fff]"><b class="fw-[700]">x</b></section>`); err != nil {
		t.Fatalf("InsertHTML() error = %v", err)
	}
	doc.Flush()
	if sheet.Len() != 4 {
		t.Errorf("sheet has %d rules after InsertHTML, want 4", sheet.Len())
	}

	doc.SetAttr(div, "data-x", "h-[9px]")
	doc.Flush()
	if got := e.Watcher().Scans(); got != 2 {
		t.Errorf("scans = %d, want 2", got)
	}

	doc.Remove(div)
	doc.Flush()
	if got := e.Watcher().Scans(); got != 2 {
		t.Errorf("scans = %d after removal, want 2", got)
	}
}

func TestDocument_Adopt(t *testing.T) {
	src, err := ReadXHTML(strings.NewReader(`<html><body class="m-[1px]"><p class="p-[1px]"/></body></html>`), nil)
	if err != nil {
		t.Fatalf("ReadXHTML() error = %v", err)
	}

	page := NewDocument(nil)
	section := page.Append(page.Body(), "section", "")
	page.Flush()

	el := page.Adopt(section, src)
	if el == nil || el.Parent() != section {
		t.Fatal("adopted element is not attached to parent")
	}
	if page.Pending() != 1 {
		t.Errorf("pending = %d, want 1", page.Pending())
	}

	var tokens []string
	for e := range page.Elements() {
		if v, ok := e.Attr("class"); ok && v != "" {
			tokens = append(tokens, v)
		}
	}
	if !slices.Equal(tokens, []string{"m-[1px]", "p-[1px]"}) {
		t.Errorf("tokens = %v", tokens)
	}

	// source is copied, not moved
	page.AddClass(page.Find("//p"), "h-[1px]")
	if got := src.Find("//p").SelectAttrValue("class", ""); got != "p-[1px]" {
		t.Errorf("source document changed: %q", got)
	}

	page.Remove(el)
	if page.Find("//p") != nil {
		t.Error("adopted element was not removed")
	}
	if page.Adopt(section, newDocument(etree.NewDocument(), nil)) != nil {
		t.Error("document without root adopted")
	}
}
