package jit

import (
	"fmt"
	"strings"
)

// trigger marks token as opting into compilation.
const trigger = "-["

// ParsedToken is structured form of a utility token.
type ParsedToken struct {
	Token     string
	Variants  []Variant
	Important bool
	Key       string
	Value     string // raw value, not normalized
}

// Parse recognizes token grammar
//
//	token   := { segment ":" } [ "!" ] key "-[" value "]"
//	segment := name | "[" fragment "]"
//	key     := [a-z0-9-]+
//
// Property key is not resolved here. Tokens without "-[" are rejected with
// ErrTriggerMiss before grammar is tried.
func Parse(token string, variants *Variants) (ParsedToken, error) {
	pt := ParsedToken{Token: token}

	head, value, err := splitValue(token)
	if err != nil {
		return pt, err
	}
	pt.Value = value

	chain, important, key, err := parseHead(head)
	if err != nil {
		return pt, err
	}
	pt.Important, pt.Key = important, key

	if variants == nil {
		variants = NewVariants(nil)
	}
	for _, seg := range chain {
		v, err := variants.Classify(seg)
		if err != nil {
			return pt, err
		}
		pt.Variants = append(pt.Variants, v)
	}
	return pt, nil
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGrammarMismatch, fmt.Sprintf(format, args...))
}

// splitValue separates token head from its value. Value spans from the first
// "-[" to the last "]", not the first one, so values with nested brackets or
// parentheses are kept whole. The last "]" must end the token.
func splitValue(token string) (head, value string, err error) {
	open := strings.Index(token, trigger)
	if open < 0 {
		return "", "", ErrTriggerMiss
	}
	end := strings.LastIndexByte(token, ']')
	if end < open+len(trigger) {
		return "", "", mismatch("missing closing bracket")
	}
	if end != len(token)-1 {
		return "", "", mismatch("unexpected %q after value", token[end+1:])
	}
	if end == open+len(trigger) {
		return "", "", mismatch("empty value")
	}
	value = token[open+len(trigger) : end]
	if err := checkValue(value); err != nil {
		return "", "", err
	}
	return token[:open], value, nil
}

// checkValue rejects values which would end the declaration or the rule they
// are placed in. Quoted strings and parenthesized or bracketed parts may
// contain anything.
func checkValue(value string) error {
	var (
		quote byte
		depth int
	)
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case quote != 0:
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '\\':
			i++
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth == 0 {
				return mismatch("unbalanced %q in value", c)
			}
			depth--
		case c == '{' || c == '}':
			return mismatch("%q in value", c)
		case c == ';' && depth == 0:
			return mismatch("';' outside of function in value")
		}
	}
	if quote != 0 || depth != 0 {
		return mismatch("unbalanced value %q", value)
	}
	return nil
}

// headParser walks "md:hover:!bg" part of the token.
type headParser struct {
	src string
	pos int
}

func (p *headParser) eof() bool {
	return p.pos >= len(p.src)
}

// segment consumes one chain segment or the key. Colons inside bracketed
// segment belong to the segment.
func (p *headParser) segment() (string, error) {
	start := p.pos
	if !p.eof() && p.src[p.pos] == '[' {
		depth := 0
		for ; !p.eof(); p.pos++ {
			switch p.src[p.pos] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				p.pos++
				if !p.eof() && p.src[p.pos] != ':' {
					return "", mismatch("expected ':' after %q", p.src[start:p.pos])
				}
				return p.src[start:p.pos], nil
			}
		}
		return "", mismatch("unclosed '[' in variant %q", p.src[start:])
	}
	for !p.eof() && p.src[p.pos] != ':' {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

func parseHead(head string) (chain []string, important bool, key string, err error) {
	p := &headParser{src: head}
	for {
		seg, err := p.segment()
		if err != nil {
			return nil, false, "", err
		}
		if p.eof() {
			key = seg
			break
		}
		// separator
		p.pos++
		if seg == "" {
			return nil, false, "", mismatch("empty variant")
		}
		chain = append(chain, seg)
	}

	if strings.HasPrefix(key, "!") {
		important, key = true, key[1:]
	}
	if !isPropertyKey(key) {
		return nil, false, "", mismatch("bad property key %q", key)
	}
	return chain, important, key, nil
}
