package jit

import (
	"fmt"
	"maps"
	"strings"
)

// VariantKind tells how variant narrows where declaration applies.
type VariantKind int

const (
	VariantBreakpoint VariantKind = iota + 1 // minimum viewport width condition
	VariantPseudo                            // pseudo-class or pseudo-element
	VariantDark                              // dark mode ancestor scoping
	VariantArbitrary                         // raw selector fragment
)

func (k VariantKind) String() string {
	switch k {
	case VariantBreakpoint:
		return "breakpoint"
	case VariantPseudo:
		return "pseudo"
	case VariantDark:
		return "dark"
	case VariantArbitrary:
		return "arbitrary"
	default:
		return fmt.Sprintf("VariantKind(%d)", int(k))
	}
}

// Variant is a single classified segment of token variant chain.
type Variant struct {
	Kind  VariantKind
	Name  string // segment as written, brackets stripped for arbitrary fragments
	Value string // min-width for breakpoints, selector suffix for pseudo variants
}

// DefaultBreakpoints lists named minimum viewport widths.
var DefaultBreakpoints = map[string]string{
	"sm":  "640px",
	"md":  "768px",
	"lg":  "1024px",
	"xl":  "1280px",
	"2xl": "1536px",
}

var pseudoVariants = map[string]string{
	"hover":       ":hover",
	"focus":       ":focus",
	"active":      ":active",
	"visited":     ":visited",
	"disabled":    ":disabled",
	"first":       ":first-child",
	"first-child": ":first-child",
	"last":        ":last-child",
	"last-child":  ":last-child",
	"odd":         ":nth-child(odd)",
	"even":        ":nth-child(even)",
	"before":      "::before",
	"after":       "::after",
	"placeholder": "::placeholder",
}

const darkVariant = "dark"

// Variants classifies variant chain segments.
type Variants struct {
	breakpoints map[string]string
}

// NewVariants creates classifier, breakpoints are added to (or redefine)
// DefaultBreakpoints.
func NewVariants(breakpoints map[string]string) *Variants {
	v := &Variants{breakpoints: maps.Clone(DefaultBreakpoints)}
	maps.Copy(v.breakpoints, breakpoints)
	return v
}

// Classify puts segment into exactly one category.
func (v *Variants) Classify(seg string) (Variant, error) {
	switch {
	case strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]"):
		frag := seg[1 : len(seg)-1]
		if strings.TrimSpace(frag) == "" {
			return Variant{}, fmt.Errorf("%w: empty arbitrary selector", ErrGrammarMismatch)
		}
		return Variant{Kind: VariantArbitrary, Name: frag}, nil
	case seg == darkVariant:
		return Variant{Kind: VariantDark, Name: seg}, nil
	}
	if width, ok := v.breakpoints[seg]; ok {
		return Variant{Kind: VariantBreakpoint, Name: seg, Value: width}, nil
	}
	if suffix, ok := pseudoVariants[seg]; ok {
		return Variant{Kind: VariantPseudo, Name: seg, Value: suffix}, nil
	}
	return Variant{}, fmt.Errorf("%w: unknown variant %q", ErrGrammarMismatch, seg)
}
