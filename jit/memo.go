package jit

import (
	"fmt"
	"sort"

	"github.com/maruel/natural"
)

// Outcome is the permanent result of the first compilation attempt.
type Outcome int

const (
	OutcomeCompiled Outcome = iota + 1
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompiled:
		return "compiled"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MemoEntry describes single memoized token.
type MemoEntry struct {
	Token   string
	Outcome Outcome
	Rule    string // rule text for compiled tokens
	Reason  error  // failure for skipped tokens
}

// memo records every token ever attempted. Entries are written once and
// never changed, except that skipped ones may be forgotten on Init.
type memo struct {
	entries map[string]MemoEntry
}

func newMemo() *memo {
	return &memo{entries: make(map[string]MemoEntry)}
}

func (m *memo) lookup(token string) (MemoEntry, bool) {
	e, ok := m.entries[token]
	return e, ok
}

// record stores entry unless token is already known, it returns false in the
// latter case.
func (m *memo) record(e MemoEntry) bool {
	if _, exists := m.entries[e.Token]; exists {
		return false
	}
	m.entries[e.Token] = e
	return true
}

func (m *memo) forgetSkipped() int {
	n := 0
	for token, e := range m.entries {
		if e.Outcome == OutcomeSkipped {
			delete(m.entries, token)
			n++
		}
	}
	return n
}

func (m *memo) count(o Outcome) int {
	n := 0
	for _, e := range m.entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// sorted returns entries in natural token order.
func (m *memo) sorted() []MemoEntry {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))

	out := make([]MemoEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.entries[k])
	}
	return out
}
