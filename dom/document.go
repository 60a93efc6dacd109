// Package dom provides in-process markup document which jit engine can scan
// and observe. Changes made through Document methods are collected and
// delivered to observers in batches on Flush.
package dom

import (
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"jitcss/jit"
)

// Document is etree based markup tree implementing jit.Observable.
// NOTE: presently not to be used concurrently!
type Document struct {
	doc *etree.Document
	log *zap.Logger

	pending   []jit.Mutation
	observers map[int]func([]jit.Mutation)
	next      int
}

func newDocument(doc *etree.Document, log *zap.Logger) *Document {
	if log == nil {
		log = zap.NewNop()
	}
	return &Document{
		doc:       doc,
		log:       log.Named("dom"),
		observers: make(map[int]func([]jit.Mutation)),
	}
}

// NewDocument creates empty html document with head and body.
func NewDocument(log *zap.Logger) *Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("html")
	root.CreateElement("head")
	root.CreateElement("body")
	return newDocument(doc, log)
}

// Root returns document root element.
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Body returns body element or root when document has no body.
func (d *Document) Body() *etree.Element {
	if body := d.doc.FindElement("//body"); body != nil {
		return body
	}
	return d.doc.Root()
}

// Find returns first element matching etree path.
func (d *Document) Find(path string) *etree.Element {
	return d.doc.FindElement(path)
}

// element adapts etree element to jit.Element.
type element struct {
	e *etree.Element
}

func (el element) Attr(name string) (string, bool) {
	a := el.e.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// Elements yields every element in document order.
func (d *Document) Elements() iter.Seq[jit.Element] {
	return func(yield func(jit.Element) bool) {
		walk(&d.doc.Element, yield)
	}
}

func walk(parent *etree.Element, yield func(jit.Element) bool) bool {
	for _, child := range parent.ChildElements() {
		if !yield(element{child}) || !walk(child, yield) {
			return false
		}
	}
	return true
}

// Observe registers fn to receive mutation batches.
func (d *Document) Observe(fn func([]jit.Mutation)) func() {
	id := d.next
	d.next++
	d.observers[id] = fn
	return func() { delete(d.observers, id) }
}

func (d *Document) record(m jit.Mutation) {
	d.pending = append(d.pending, m)
}

// Pending returns number of mutations waiting for Flush.
func (d *Document) Pending() int {
	return len(d.pending)
}

// Flush delivers collected mutations as a single batch to every observer and
// returns batch size. Mutations made by observers go into the next batch.
func (d *Document) Flush() int {
	if len(d.pending) == 0 {
		return 0
	}
	batch := d.pending
	d.pending = nil

	for _, id := range slices.Sorted(maps.Keys(d.observers)) {
		if fn, ok := d.observers[id]; ok {
			fn(batch)
		}
	}
	d.log.Debug("Mutations delivered", zap.Int("count", len(batch)), zap.Int("observers", len(d.observers)))
	return len(batch)
}

// Append creates new child element of parent with given class list.
func (d *Document) Append(parent *etree.Element, tag, classList string) *etree.Element {
	el := parent.CreateElement(tag)
	if classList != "" {
		el.CreateAttr("class", classList)
	}
	d.record(jit.Mutation{Kind: jit.MutationChildList})
	return el
}

// Adopt appends deep copy of src root element to parent and returns the copy.
func (d *Document) Adopt(parent *etree.Element, src *Document) *etree.Element {
	root := src.Root()
	if root == nil {
		return nil
	}
	el := root.Copy()
	parent.AddChild(el)
	d.record(jit.Mutation{Kind: jit.MutationChildList})
	return el
}

// Remove detaches element from its parent.
func (d *Document) Remove(el *etree.Element) {
	parent := el.Parent()
	if parent == nil {
		return
	}
	parent.RemoveChild(el)
	d.record(jit.Mutation{Kind: jit.MutationChildRemoved})
}

// SetAttr sets (or replaces) attribute value.
func (d *Document) SetAttr(el *etree.Element, name, value string) {
	el.CreateAttr(name, value)
	d.record(jit.Mutation{Kind: jit.MutationAttributes, Attr: name})
}

// AddClass appends tokens missing from element class list.
func (d *Document) AddClass(el *etree.Element, tokens ...string) {
	list := strings.Fields(el.SelectAttrValue("class", ""))
	changed := false
	for _, t := range tokens {
		if t != "" && !slices.Contains(list, t) {
			list = append(list, t)
			changed = true
		}
	}
	if changed {
		d.SetAttr(el, "class", strings.Join(list, " "))
	}
}

// InsertHTML parses markup fragment in body context and appends resulting
// nodes to parent.
func (d *Document) InsertHTML(parent *etree.Element, fragment string) error {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return fmt.Errorf("unable to parse html fragment: %w", err)
	}
	for _, n := range nodes {
		appendNode(parent, n)
	}
	if len(nodes) > 0 {
		d.record(jit.Mutation{Kind: jit.MutationChildList})
	}
	return nil
}

// WriteTo serializes document, implementing io.WriterTo.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	return d.doc.WriteTo(w)
}

// String returns serialized document.
func (d *Document) String() string {
	s, err := d.doc.WriteToString()
	if err != nil {
		d.log.Error("Unable to serialize document", zap.Error(err))
	}
	return s
}
