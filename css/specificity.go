package css

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Specificity of a selector as (ids, classes/attributes/pseudo-classes,
// types/pseudo-elements).
type Specificity [3]int

// Compare returns -1, 0 or 1 when s is lower, equal or higher than o.
func (s Specificity) Compare(o Specificity) int {
	for i := range s {
		switch {
		case s[i] < o[i]:
			return -1
		case s[i] > o[i]:
			return 1
		}
	}
	return 0
}

// pseudo-elements which may be written with single colon
var legacyPseudoElements = map[string]bool{
	"before":       true,
	"after":        true,
	"first-line":   true,
	"first-letter": true,
}

// SelectorSpecificity computes specificity of a single complex selector.
// Arguments of functional pseudo-classes are not taken into account, so
// :is(), :not() and :has() count as a plain pseudo-class.
func SelectorSpecificity(selector string) Specificity {
	var (
		sp     Specificity
		colons int
		dot    bool
		parens int
		inAttr bool
	)

	l := css.NewLexer(parse.NewInput(strings.NewReader(selector)))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			return sp
		}

		switch {
		case parens > 0:
			switch tt {
			case css.FunctionToken, css.LeftParenthesisToken:
				parens++
			case css.RightParenthesisToken:
				parens--
			}
			continue
		case inAttr:
			if tt == css.RightBracketToken {
				inAttr = false
			}
			continue
		}

		switch tt {
		case css.ColonToken:
			colons++
			continue
		case css.DelimToken:
			if string(data) == "." {
				dot = true
				continue
			}
		case css.HashToken:
			sp[0]++
		case css.LeftBracketToken:
			sp[1]++
			inAttr = true
		case css.IdentToken:
			name := strings.ToLower(string(data))
			switch {
			case dot:
				sp[1]++
			case colons == 1 && !legacyPseudoElements[name]:
				sp[1]++
			default:
				// type selector or pseudo-element
				sp[2]++
			}
		case css.FunctionToken:
			name := strings.ToLower(strings.TrimSuffix(string(data), "("))
			switch {
			case colons == 1 && name == "where":
				// zero specificity by definition
			case colons == 1:
				sp[1]++
			case colons > 1:
				sp[2]++
			}
			parens = 1
		}
		colons, dot = 0, false
	}
}
