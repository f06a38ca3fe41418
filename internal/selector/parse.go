package selector

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed selector string.
type ParseError struct {
	Selector string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("selector: cannot parse %q: %s", e.Selector, e.Reason)
}

// Parse compiles a single CSS Level 3 subset selector string into a
// CompiledSelector. locator is stamped onto the result for the caller to
// key its handler tables by.
func Parse(src string, locator int) (CompiledSelector, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return CompiledSelector{}, &ParseError{Selector: src, Reason: "empty selector"}
	}

	parts, combs, err := splitCombinators(s)
	if err != nil {
		return CompiledSelector{}, err
	}

	compounds := make([]Compound, len(parts))
	for i, p := range parts {
		c, err := parseCompound(p)
		if err != nil {
			return CompiledSelector{}, err
		}
		compounds[i] = c
	}

	return CompiledSelector{Source: src, Compounds: compounds, Combs: combs, Locator: locator}, nil
}

// Compile parses every selector string in srcs, handing out sequential
// locators starting at 0 in registration order.
func Compile(srcs []string) (*Program, error) {
	prog := &Program{}
	for i, s := range srcs {
		cs, err := Parse(s, i)
		if err != nil {
			return nil, err
		}
		prog.Selectors = append(prog.Selectors, cs)
	}
	return prog, nil
}

// splitCombinators tokenizes top-level whitespace/'>'/'+'/'~' combinators,
// respecting brackets and parens so that e.g. "a[href~='x y']" or
// ":not(a > b)" don't get split on the space inside them.
func splitCombinators(s string) ([]string, []Combinator, error) {
	var parts []string
	var combs []Combinator

	depthBracket, depthParen := 0, 0
	start := 0
	pendingComb := Combinator(255) // sentinel: none pending

	flushCompound := func(end int) {
		tok := strings.TrimSpace(s[start:end])
		if tok == "" {
			return
		}
		if len(parts) > 0 {
			if pendingComb == 255 {
				combs = append(combs, Descendant)
			} else {
				combs = append(combs, pendingComb)
			}
		}
		parts = append(parts, tok)
		pendingComb = 255
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '[':
			depthBracket++
		case ']':
			if depthBracket > 0 {
				depthBracket--
			}
		case '(':
			depthParen++
		case ')':
			if depthParen > 0 {
				depthParen--
			}
		}
		if depthBracket == 0 && depthParen == 0 {
			switch c {
			case '>', '+', '~':
				flushCompound(i)
				switch c {
				case '>':
					pendingComb = Child
				case '+':
					pendingComb = AdjacentSibling
				case '~':
					pendingComb = GeneralSibling
				}
				start = i + 1
				i++
				continue
			case ' ', '\t', '\n':
				// Only a combinator boundary if not immediately followed by
				// another combinator symbol (handled by flushCompound being a
				// no-op on empty runs) and not already inside a pending
				// explicit combinator's own whitespace.
				flushCompound(i)
				start = i + 1
				i++
				continue
			}
		}
		i++
	}
	flushCompound(len(s))

	if len(parts) == 0 {
		return nil, nil, &ParseError{Selector: s, Reason: "no compound selectors found"}
	}
	return parts, combs, nil
}

func parseCompound(tok string) (Compound, error) {
	var c Compound
	i := 0
	n := len(tok)

	if i < n && (tok[i] == '*') {
		c.Universal = true
		i++
	} else {
		start := i
		for i < n && isIdentChar(tok[i]) {
			i++
		}
		if i > start {
			c.Tag = strings.ToLower(tok[start:i])
		} else {
			c.Universal = true
		}
	}

	for i < n {
		switch tok[i] {
		case '#':
			i++
			start := i
			for i < n && isIdentChar(tok[i]) {
				i++
			}
			c.ID = tok[start:i]
		case '.':
			i++
			start := i
			for i < n && isIdentChar(tok[i]) {
				i++
			}
			c.Classes = append(c.Classes, tok[start:i])
		case '[':
			end := matchingBracket(tok, i, '[', ']')
			if end == -1 {
				return c, &ParseError{Selector: tok, Reason: "unterminated attribute selector"}
			}
			pred, err := parseAttrPredicate(tok[i+1 : end])
			if err != nil {
				return c, err
			}
			c.Attrs = append(c.Attrs, pred)
			i = end + 1
		case ':':
			j := i + 1
			start := j
			for j < n && isIdentChar(tok[j]) {
				j++
			}
			name := strings.ToLower(tok[start:j])
			arg := ""
			if j < n && tok[j] == '(' {
				end := matchingBracket(tok, j, '(', ')')
				if end == -1 {
					return c, &ParseError{Selector: tok, Reason: "unterminated pseudo-class argument"}
				}
				arg = tok[j+1 : end]
				j = end + 1
			}
			if err := applyPseudo(&c, name, arg); err != nil {
				return c, err
			}
			i = j
		default:
			return c, &ParseError{Selector: tok, Reason: fmt.Sprintf("unexpected character %q", tok[i])}
		}
	}

	return c, nil
}

func isIdentChar(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func matchingBracket(s string, open int, o, c byte) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case o:
			depth++
		case c:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseAttrPredicate(body string) (AttrPredicate, error) {
	body = strings.TrimSpace(body)
	ops := []struct {
		sym string
		op  AttrOp
	}{
		{"~=", AttrIncludes},
		{"|=", AttrDashMatch},
		{"^=", AttrPrefix},
		{"$=", AttrSuffix},
		{"*=", AttrSubstring},
		{"=", AttrEquals},
	}
	for _, o := range ops {
		if idx := strings.Index(body, o.sym); idx != -1 {
			name := strings.TrimSpace(body[:idx])
			val := strings.TrimSpace(body[idx+len(o.sym):])
			val = unquote(val)
			return AttrPredicate{Name: name, Op: o.op, Value: val}, nil
		}
	}
	return AttrPredicate{Name: body, Op: AttrPresent}, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func applyPseudo(c *Compound, name, arg string) error {
	switch name {
	case "first-child":
		c.Nth = append(c.Nth, NthPredicate{Kind: NthChild, A: 0, B: 1})
	case "last-child":
		c.Nth = append(c.Nth, NthPredicate{Kind: NthChild, A: 0, B: 1, FromEnd: true})
	case "only-child":
		c.Nth = append(c.Nth, NthPredicate{Kind: NthChild, A: 0, B: 1})
		c.Nth = append(c.Nth, NthPredicate{Kind: NthChild, A: 0, B: 1, FromEnd: true})
	case "first-of-type":
		c.Nth = append(c.Nth, NthPredicate{Kind: NthOfType, A: 0, B: 1})
	case "last-of-type":
		c.Nth = append(c.Nth, NthPredicate{Kind: NthOfType, A: 0, B: 1, FromEnd: true})
	case "only-of-type":
		c.Nth = append(c.Nth, NthPredicate{Kind: NthOfType, A: 0, B: 1})
		c.Nth = append(c.Nth, NthPredicate{Kind: NthOfType, A: 0, B: 1, FromEnd: true})
	case "nth-child":
		a, b, err := parseAnB(arg)
		if err != nil {
			return err
		}
		c.Nth = append(c.Nth, NthPredicate{Kind: NthChild, A: a, B: b})
	case "nth-last-child":
		a, b, err := parseAnB(arg)
		if err != nil {
			return err
		}
		c.Nth = append(c.Nth, NthPredicate{Kind: NthChild, A: a, B: b, FromEnd: true})
	case "nth-of-type":
		a, b, err := parseAnB(arg)
		if err != nil {
			return err
		}
		c.Nth = append(c.Nth, NthPredicate{Kind: NthOfType, A: a, B: b})
	case "nth-last-of-type":
		a, b, err := parseAnB(arg)
		if err != nil {
			return err
		}
		c.Nth = append(c.Nth, NthPredicate{Kind: NthOfType, A: a, B: b, FromEnd: true})
	case "not":
		inner, err := parseCompound(strings.TrimSpace(arg))
		if err != nil {
			return err
		}
		c.Not = append(c.Not, inner)
	default:
		return &ParseError{Selector: name, Reason: "unsupported pseudo-class"}
	}
	return nil
}

// parseAnB parses the An+B micro-syntax used by :nth-child() and
// relatives: "odd", "even", "3", "2n", "2n+1", "-n+3", etc.
func parseAnB(arg string) (a, b int, err error) {
	arg = strings.ToLower(strings.ReplaceAll(arg, " ", ""))
	switch arg {
	case "odd":
		return 2, 1, nil
	case "even":
		return 2, 0, nil
	}
	nIdx := strings.IndexByte(arg, 'n')
	if nIdx == -1 {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return 0, 0, &ParseError{Selector: arg, Reason: "invalid An+B formula"}
		}
		return 0, v, nil
	}
	aPart := arg[:nIdx]
	switch aPart {
	case "", "+":
		a = 1
	case "-":
		a = -1
	default:
		v, err := strconv.Atoi(aPart)
		if err != nil {
			return 0, 0, &ParseError{Selector: arg, Reason: "invalid An+B coefficient"}
		}
		a = v
	}
	rest := arg[nIdx+1:]
	if rest == "" {
		b = 0
	} else {
		v, err := strconv.Atoi(rest)
		if err != nil {
			return 0, 0, &ParseError{Selector: arg, Reason: "invalid An+B offset"}
		}
		b = v
	}
	return a, b, nil
}
