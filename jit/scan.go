package jit

import (
	"iter"
	"strings"
)

// Element is a markup element which may carry class-like attributes.
type Element interface {
	Attr(name string) (string, bool)
}

// Tree enumerates elements of a markup document.
type Tree interface {
	Elements() iter.Seq[Element]
}

// MutationKind tells what changed in the tree.
type MutationKind int

const (
	MutationChildList    MutationKind = iota + 1 // nodes were added
	MutationAttributes                           // attribute changed on existing node
	MutationChildRemoved                         // nodes were removed
)

// Mutation is a single change notification.
type Mutation struct {
	Kind MutationKind
	Attr string // attribute name for MutationAttributes
}

// Observable is a tree which reports its changes in batches.
type Observable interface {
	Tree
	// Observe registers fn to be called with every batch of mutations, returned
	// function unregisters it.
	Observe(fn func([]Mutation)) (stop func())
}

// Tokens returns distinct candidate tokens found in attrs of every element of
// tree, in document order.
func Tokens(tree Tree, attrs []string) []string {
	var (
		tokens []string
		seen   = make(map[string]struct{})
	)
	for el := range tree.Elements() {
		for _, attr := range attrs {
			list, ok := el.Attr(attr)
			if !ok {
				continue
			}
			for token := range strings.FieldsSeq(list) {
				if !strings.Contains(token, trigger) {
					continue
				}
				if _, dup := seen[token]; dup {
					continue
				}
				seen[token] = struct{}{}
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}
