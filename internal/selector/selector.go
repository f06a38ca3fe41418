// Package selector compiles a CSS Level 3 subset into a Program and
// evaluates it incrementally against a live, streaming open-element
// stack (spec §4.3). It never sees more than the currently open ancestor
// chain plus small, memory-accounted per-parent bookkeeping — it does not
// retain a DOM.
package selector

// Combinator identifies how one compound selector relates to the one to
// its left in a complex selector.
type Combinator uint8

const (
	// None marks the leftmost compound of a complex selector: it may
	// start matching at any element, anywhere in the document.
	None Combinator = iota
	Descendant
	Child
	AdjacentSibling
	GeneralSibling
)

// AttrOp is one of the six CSS attribute-selector operators.
type AttrOp uint8

const (
	AttrPresent AttrOp = iota
	AttrEquals         // =
	AttrIncludes       // ~=
	AttrDashMatch      // |=
	AttrPrefix         // ^=
	AttrSuffix         // $=
	AttrSubstring      // *=
)

// AttrPredicate is one `[name op value]` clause.
type AttrPredicate struct {
	Name  string
	Op    AttrOp
	Value string
}

// NthKind distinguishes :nth-child-family formulas from their -of-type
// counterparts.
type NthKind uint8

const (
	NthChild NthKind = iota
	NthOfType
)

// NthPredicate is a compiled An+B formula from :nth-child(An+B),
// :nth-of-type, :first-child, :last-child, :nth-last-child, etc.
// FromEnd formulas (nth-last-*, last-child) require the parent's final
// child count, which is only known once the parent's end tag is reached;
// see DESIGN.md for how the VM resolves these without buffering the
// whole document.
type NthPredicate struct {
	Kind    NthKind
	A, B    int
	FromEnd bool
}

// Matches reports whether index (1-based) satisfies An+B.
func (p NthPredicate) Matches(index int) bool {
	if p.A == 0 {
		return index == p.B
	}
	diff := index - p.B
	if p.A > 0 {
		return diff >= 0 && diff%p.A == 0
	}
	// Negative step: diff must be <= 0 and evenly divisible.
	return diff <= 0 && diff%p.A == 0
}

// Compound is one simple selector: a tag/universal test plus zero or more
// id/class/attribute/pseudo-class predicates, all of which must hold.
type Compound struct {
	Universal bool
	Tag       string // lowercased; empty if Universal and no type given
	ID        string
	Classes   []string
	Attrs     []AttrPredicate
	Nth       []NthPredicate
	Not       []Compound // :not(simple) — one level, no combinators inside
}

// RequiresTotal reports whether any predicate on this compound needs the
// parent's final child/of-type count before it can be evaluated.
func (c *Compound) RequiresTotal() bool {
	for _, n := range c.Nth {
		if n.FromEnd {
			return true
		}
	}
	return false
}

// CompiledSelector is one complex selector: a left-to-right chain of
// compounds joined by combinators. Combs has len(Compounds)-1 entries;
// Combs[i] relates Compounds[i] to Compounds[i+1].
type CompiledSelector struct {
	Source    string
	Compounds []Compound
	Combs     []Combinator
	Locator   int
}

// Program is the union of every compiled selector registered with one
// rewriter instance, each carrying its own locator on its terminal
// instruction (spec §4.3 "Multiple selectors are unioned into one
// program with distinct locators on their terminal instructions").
type Program struct {
	Selectors []CompiledSelector
}

// HasBackwardPseudo reports whether any selector in the program uses a
// pseudo-class that can only be resolved once its parent's final child
// count is known.
func (p *Program) HasBackwardPseudo() bool {
	for _, s := range p.Selectors {
		for _, c := range s.Compounds {
			if c.RequiresTotal() {
				return true
			}
		}
	}
	return false
}

// NeedsAttributes reports whether any compound in the program tests
// anything beyond a tag name or the universal selector — id, class,
// attribute predicates, or nth-child counters all require decoded
// Lexemes, which only the tokenizer's full mode produces. A program for
// which this is false can be matched entirely from TagHints in eager
// mode, the RewriteController's global fast path (see DESIGN.md).
func (p *Program) NeedsAttributes() bool {
	var needs func(c *Compound) bool
	needs = func(c *Compound) bool {
		if c.ID != "" || len(c.Classes) > 0 || len(c.Attrs) > 0 || len(c.Nth) > 0 {
			return true
		}
		for i := range c.Not {
			if needs(&c.Not[i]) {
				return true
			}
		}
		return false
	}
	for _, s := range p.Selectors {
		for i := range s.Compounds {
			if needs(&s.Compounds[i]) {
				return true
			}
		}
	}
	return false
}
