package jit

import (
	"strings"

	"jitcss/css"
)

// CompiledRule is the output of compilation for a single token.
type CompiledRule struct {
	Token        string
	Selector     string
	Declarations []css.Declaration
	MediaQuery   string // empty when rule is unconditional
}

// Text renders rule as CSS text suitable for stylesheet insertion.
func (r CompiledRule) Text() string {
	var sb strings.Builder
	if r.MediaQuery != "" {
		sb.WriteString("@media ")
		sb.WriteString(r.MediaQuery)
		sb.WriteString(" { ")
	}
	sb.WriteString(r.Selector)
	sb.WriteString(" {")
	for _, d := range r.Declarations {
		sb.WriteByte(' ')
		sb.WriteString(d.String())
		sb.WriteByte(';')
	}
	sb.WriteString(" }")
	if r.MediaQuery != "" {
		sb.WriteString(" }")
	}
	return sb.String()
}

// BaseSelector returns class selector matching elements carrying token.
func BaseSelector(token string) string {
	return "." + css.EscapeIdent(token)
}

// Build expands variant chain of pt into final selector and pairs it with
// declarations for every resolved property.
//
// Pseudo variants are appended to base in chain order. Arbitrary fragments are
// applied next: "&" is replaced by selector built so far, fragment without "&"
// selects descendants. Dark variant scopes the result under darkClass
// ancestor. When several breakpoints are present the last one wins.
func Build(pt ParsedToken, props []string, base, darkClass string) CompiledRule {
	rule := CompiledRule{Token: pt.Token}

	sel := base
	var (
		dark      bool
		fragments []string
	)
	for _, v := range pt.Variants {
		switch v.Kind {
		case VariantBreakpoint:
			rule.MediaQuery = "(min-width: " + v.Value + ")"
		case VariantPseudo:
			sel += v.Value
		case VariantDark:
			dark = true
		case VariantArbitrary:
			fragments = append(fragments, Normalize(v.Name))
		}
	}
	for _, frag := range fragments {
		if strings.Contains(frag, "&") {
			sel = strings.ReplaceAll(frag, "&", sel)
		} else {
			sel = sel + " " + frag
		}
	}
	if dark {
		sel = "." + css.EscapeIdent(darkClass) + " " + sel
	}
	rule.Selector = sel

	value := Normalize(pt.Value)
	rule.Declarations = make([]css.Declaration, 0, len(props))
	for _, p := range props {
		rule.Declarations = append(rule.Declarations, css.Declaration{Property: p, Value: value, Important: pt.Important})
	}
	return rule
}
