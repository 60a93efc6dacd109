package css

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ErrMalformed is returned for rule text the sheet refuses to accept.
var ErrMalformed = errors.New("malformed rule")

// Parser parses and validates CSS rule text.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// ParseRule parses text which must contain exactly one rule: either a plain
// ruleset or a @media block with at least one nested ruleset.
func (p *Parser) ParseRule(text string) (StylesheetItem, error) {
	item := StylesheetItem{Text: strings.TrimSpace(text)}

	if err := checkBalance(item.Text); err != nil {
		return item, err
	}

	parser := css.NewParser(parse.NewInput(strings.NewReader(item.Text)), false)

	count := 0
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// End of input or error
			if parser.Err() != nil && parser.Err().Error() != "EOF" {
				p.log.Debug("CSS parse error", zap.Error(parser.Err()))
				return item, malformed("%v", parser.Err())
			}
			if count != 1 {
				return item, malformed("expected exactly one rule, got %d", count)
			}
			return item, nil

		case css.CommentGrammar:
			continue

		case css.BeginAtRuleGrammar:
			atRule := string(data)
			if !strings.EqualFold(atRule, "@media") {
				return item, malformed("unsupported at-rule %s", atRule)
			}
			query := joinTokens(parser.Values())
			if query == "" {
				return item, malformed("empty media query")
			}
			rules, err := p.parseMediaBlockRules(parser)
			if err != nil {
				return item, err
			}
			p.log.Debug("Parsed @media block", zap.String("query", query), zap.Int("rules", len(rules)))
			item.MediaBlock = &MediaBlock{Query: query, Rules: rules}
			count++

		case css.BeginRulesetGrammar:
			rule, err := p.parseRuleset(parser, data)
			if err != nil {
				return item, err
			}
			item.Rule = &rule
			count++

		default:
			return item, malformed("unexpected %s at top level", gt)
		}
	}
}

// parseRuleset collects selector and declarations until EndRulesetGrammar.
func (p *Parser) parseRuleset(parser *css.Parser, data []byte) (Rule, error) {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range parser.Values() {
		sb.Write(v.Data)
	}
	rule := Rule{Selector: strings.TrimSpace(sb.String())}
	if rule.Selector == "" {
		return rule, malformed("empty selector")
	}

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.EndRulesetGrammar:
			if len(rule.Declarations) == 0 {
				return rule, malformed("rule %s has no declarations", rule.Selector)
			}
			return rule, nil

		case css.CommentGrammar:
			continue

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			decl, err := parseDeclaration(string(data), parser.Values())
			if err != nil {
				return rule, err
			}
			rule.Declarations = append(rule.Declarations, decl)

		case css.ErrorGrammar:
			return rule, malformed("unterminated rule %s", rule.Selector)

		default:
			return rule, malformed("unexpected %s in rule %s", gt, rule.Selector)
		}
	}
}

// parseMediaBlockRules parses rules inside an @media block and returns them.
func (p *Parser) parseMediaBlockRules(parser *css.Parser) ([]Rule, error) {
	var rules []Rule

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.EndAtRuleGrammar:
			if len(rules) == 0 {
				return nil, malformed("empty @media block")
			}
			return rules, nil

		case css.CommentGrammar:
			continue

		case css.BeginRulesetGrammar:
			rule, err := p.parseRuleset(parser, data)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)

		case css.ErrorGrammar:
			return nil, malformed("unterminated @media block")

		default:
			return nil, malformed("unexpected %s in @media block", gt)
		}
	}
}

var importantSuffix = regexp.MustCompile(`(?i)\s*!\s*important$`)

func parseDeclaration(name string, values []css.Token) (Declaration, error) {
	decl := Declaration{Property: strings.TrimSpace(name)}
	raw := joinTokens(values)
	if loc := importantSuffix.FindStringIndex(raw); loc != nil {
		decl.Important = true
		raw = strings.TrimSpace(raw[:loc[0]])
	}
	if decl.Property == "" {
		return decl, malformed("declaration without property")
	}
	if raw == "" {
		return decl, malformed("empty value for %s", decl.Property)
	}
	decl.Value = raw
	return decl, nil
}

// joinTokens builds raw string from tokens collapsing whitespace.
func joinTokens(tokens []css.Token) string {
	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	return strings.TrimSpace(strings.Join(rawParts, ""))
}

// checkBalance makes sure brackets and quotes in text are balanced. Escaped
// characters and characters inside strings are ignored.
func checkBalance(text string) error {
	var (
		stack []byte
		quote byte
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\\' {
			i++
			continue
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{', '(', '[':
			stack = append(stack, c)
		case '}', ')', ']':
			open := map[byte]byte{'}': '{', ')': '(', ']': '['}[c]
			if len(stack) == 0 || stack[len(stack)-1] != open {
				return malformed("unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if quote != 0 {
		return malformed("unterminated string")
	}
	if len(stack) != 0 {
		return malformed("unclosed %q", stack[len(stack)-1])
	}
	return nil
}
