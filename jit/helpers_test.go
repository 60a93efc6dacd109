package jit

import (
	"iter"
	"maps"
	"slices"
	"strings"
)

type fakeElement map[string]string

func (e fakeElement) Attr(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// fakeTree is a minimal observable tree, mutations are delivered by emit.
type fakeTree struct {
	elements  []fakeElement
	observers map[int]func([]Mutation)
	next      int
}

func newFakeTree(classLists ...string) *fakeTree {
	t := &fakeTree{observers: make(map[int]func([]Mutation))}
	for _, l := range classLists {
		t.elements = append(t.elements, fakeElement{"class": l})
	}
	return t
}

func (t *fakeTree) Elements() iter.Seq[Element] {
	return func(yield func(Element) bool) {
		for _, el := range t.elements {
			if !yield(el) {
				return
			}
		}
	}
}

func (t *fakeTree) Observe(fn func([]Mutation)) func() {
	id := t.next
	t.next++
	t.observers[id] = fn
	return func() { delete(t.observers, id) }
}

func (t *fakeTree) emit(batch ...Mutation) {
	for _, id := range slices.Sorted(maps.Keys(t.observers)) {
		t.observers[id](batch)
	}
}

func (t *fakeTree) add(classList string) {
	t.elements = append(t.elements, fakeElement{"class": classList})
	t.emit(Mutation{Kind: MutationChildList})
}

// memorySheet records inserted texts and rejects texts containing reject.
type memorySheet struct {
	texts  []string
	reject string
}

func (s *memorySheet) InsertRule(text string, index int) (int, error) {
	if s.reject != "" && strings.Contains(text, s.reject) {
		return -1, errRejected
	}
	s.texts = slices.Insert(s.texts, index, text)
	return index, nil
}

func (s *memorySheet) Len() int {
	return len(s.texts)
}

type rejectError string

func (e rejectError) Error() string { return string(e) }

const errRejected = rejectError("syntax error")
