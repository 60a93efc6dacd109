package css

import (
	"fmt"
	"io"
	"strings"
)

// Declaration is a single "property: value" pair inside a rule.
type Declaration struct {
	Property  string // Property name (e.g., "width", "--brand")
	Value     string // Value without "!important"
	Important bool   // true if "!important" was present
}

// String returns the CSS text of the declaration without trailing semicolon.
func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Rule represents a single CSS rule (selector + declarations).
// Declarations keep source order: later declarations of the same property win.
type Rule struct {
	Selector     string
	Declarations []Declaration
}

// GetProperty returns the last declaration for a property, or false if not found.
func (r Rule) GetProperty(name string) (Declaration, bool) {
	for i := len(r.Declarations) - 1; i >= 0; i-- {
		if r.Declarations[i].Property == name {
			return r.Declarations[i], true
		}
	}
	return Declaration{}, false
}

// MediaBlock represents a @media block with its query and nested rules.
type MediaBlock struct {
	Query string // Raw media query (e.g., "(min-width: 768px)")
	Rules []Rule
}

// StylesheetItem is a single top-level item in a stylesheet.
// Exactly one of Rule or MediaBlock is non-nil.
type StylesheetItem struct {
	Text       string      // Rule text as it was inserted
	Rule       *Rule       // A plain rule (selector + declarations)
	MediaBlock *MediaBlock // A @media block containing nested rules
}

// Selectors returns selectors of all rules in the item.
func (it StylesheetItem) Selectors() []string {
	switch {
	case it.Rule != nil:
		return []string{it.Rule.Selector}
	case it.MediaBlock != nil:
		sels := make([]string, 0, len(it.MediaBlock.Rules))
		for _, r := range it.MediaBlock.Rules {
			sels = append(sels, r.Selector)
		}
		return sels
	}
	return nil
}

// Sheet is an ordered, insert-only list of rules. Insertion order is the only
// record of cascade priority among rules of equal specificity. Every inserted
// text is validated first, malformed text is rejected and leaves the sheet
// unchanged.
// NOTE: presently not to be used concurrently!
type Sheet struct {
	parser *Parser
	items  []StylesheetItem
}

// NewSheet creates an empty sheet which uses p to validate inserted rules.
func NewSheet(p *Parser) *Sheet {
	if p == nil {
		p = NewParser(nil)
	}
	return &Sheet{parser: p}
}

// Len returns number of rules in the sheet.
func (s *Sheet) Len() int {
	return len(s.items)
}

// InsertRule validates text and inserts it at index, shifting later rules.
// It returns the index of the newly inserted rule.
func (s *Sheet) InsertRule(text string, index int) (int, error) {
	if index < 0 || index > len(s.items) {
		return -1, fmt.Errorf("index %d is out of range [0, %d]", index, len(s.items))
	}
	item, err := s.parser.ParseRule(text)
	if err != nil {
		return -1, err
	}
	s.items = append(s.items, StylesheetItem{})
	copy(s.items[index+1:], s.items[index:])
	s.items[index] = item
	return index, nil
}

// Items returns all items in cascade order. Returned slice must not be modified.
func (s *Sheet) Items() []StylesheetItem {
	return s.items
}

// Texts returns text of all rules in cascade order.
func (s *Sheet) Texts() []string {
	texts := make([]string, 0, len(s.items))
	for _, it := range s.items {
		texts = append(texts, it.Text)
	}
	return texts
}

// RulesBySelector returns all rules (top level or nested in @media) matching the
// given selector string.
func (s *Sheet) RulesBySelector(selector string) []Rule {
	var matches []Rule
	for _, item := range s.items {
		switch {
		case item.Rule != nil:
			if item.Rule.Selector == selector {
				matches = append(matches, *item.Rule)
			}
		case item.MediaBlock != nil:
			for _, r := range item.MediaBlock.Rules {
				if r.Selector == selector {
					matches = append(matches, r)
				}
			}
		}
	}
	return matches
}

// WriteTo writes the sheet to w in cascade order, one rule per line,
// implementing io.WriterTo.
func (s *Sheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, item := range s.items {
		n, err := fmt.Fprintln(w, item.Text)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String returns the CSS text of the sheet.
func (s *Sheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}
