package selector

import "strings"

// Element is the minimal view of an open element the VM needs in order to
// test compound selectors against it. Callers (internal/rewrite) build
// one from a just-seen start tag.
type Element struct {
	Tag       string
	Namespace string // "", "svg", or "math"; foreign namespaces match case-sensitively
	ID        string
	Classes   []string
	AttrValue func(name string) (string, bool)
}

// Match is emitted when a selector's terminal compound is satisfied.
// Deferred matches (selectors ending in a FromEnd pseudo-class) are
// reported later, from Pop, once the parent's final child count is known
// — see DESIGN.md for why this relaxation is necessary for a
// non-buffering streaming engine.
type Match struct {
	Locator int
	// Ref echoes back the ref passed to the Push call that is this
	// match's subject element. Ordinary matches report it as a
	// convenience; FromEnd matches (see Pop) need it, since they
	// surface only once the subject's parent closes, long after the
	// subject's own Push call returned.
	Ref any
}

type candKind uint8

const (
	propagateDescendant candKind = iota
	oneShotChild
)

type pendingEntry struct {
	locator        int
	compound       *Compound
	childIdxAtPush int
	typeIdxAtPush  int
	tag            string
	ref            any
}

// Frame is the per-open-element bookkeeping the VM maintains. It is
// allocated on Push and consumed on the matching Pop; its size is bounded
// by the number of compiled selectors, so a deeply nested document costs
// O(depth * selectors) — accounted against the memory limiter by the
// caller the same way the open-element stack itself is (spec §4.3
// "Memory: every allocation... routes through the memory limiter").
type Frame struct {
	cand            []map[int]candKind // offered to this element's own children
	adjacentPending []map[int]bool     // consumed by the very next sibling only
	siblingSet      []map[int]bool     // offered to every later sibling
	pendingSelfAdj  []map[int]bool     // this element's own sibling offers, applied to parent at Pop
	pendingSelfGen  []map[int]bool

	childIndex int
	typeIndex  map[string]int

	pendingFromEnd []pendingEntry
}

func newFrame(nsel int) *Frame {
	f := &Frame{
		cand:            make([]map[int]candKind, nsel),
		adjacentPending: make([]map[int]bool, nsel),
		siblingSet:      make([]map[int]bool, nsel),
		pendingSelfAdj:  make([]map[int]bool, nsel),
		pendingSelfGen:  make([]map[int]bool, nsel),
		typeIndex:       map[string]int{},
	}
	for s := 0; s < nsel; s++ {
		f.cand[s] = map[int]candKind{}
		f.adjacentPending[s] = map[int]bool{}
		f.siblingSet[s] = map[int]bool{}
		f.pendingSelfAdj[s] = map[int]bool{}
		f.pendingSelfGen[s] = map[int]bool{}
	}
	return f
}

// VM evaluates a compiled Program against a live, streaming open-element
// stack. One VM instance is used for one rewrite; Push/Pop must be called
// in lockstep with the tokenizer's start/end tag emissions.
type VM struct {
	prog   *Program
	frames []*Frame
}

// New returns a VM bound to prog.
func New(prog *Program) *VM {
	return &VM{prog: prog}
}

// Depth returns the number of currently open elements tracked by the VM.
func (vm *VM) Depth() int {
	return len(vm.frames)
}

func (vm *VM) top() *Frame {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1]
}

// Push evaluates elem against the program's frontier and opens a new
// frame for it. It returns any selectors whose terminal compound was
// satisfied immediately. ref is opaque to the VM; it is echoed back in
// the Match for this element, including (crucially) a FromEnd Match
// surfaced much later from the parent's Pop, once elem itself is long
// closed and no longer the top of any stack the caller maintains.
func (vm *VM) Push(elem *Element, ref any) []Match {
	nsel := len(vm.prog.Selectors)
	parent := vm.top()

	ownCand := make([]map[int]bool, nsel)
	for s := 0; s < nsel; s++ {
		set := map[int]bool{0: true}
		if parent != nil {
			for j := range parent.cand[s] {
				set[j] = true
			}
			for j := range parent.adjacentPending[s] {
				set[j] = true
			}
			for j := range parent.siblingSet[s] {
				set[j] = true
			}
		}
		ownCand[s] = set
	}
	if parent != nil {
		for s := 0; s < nsel; s++ {
			parent.adjacentPending[s] = map[int]bool{}
		}
		parent.childIndex++
		parent.typeIndex[elem.Tag]++
	}

	idx, typeIdx := 0, 0
	if parent != nil {
		idx = parent.childIndex
		typeIdx = parent.typeIndex[elem.Tag]
	}

	newFrame := newFrame(nsel)
	if parent != nil {
		for s := 0; s < nsel; s++ {
			for j, kind := range parent.cand[s] {
				if kind == propagateDescendant {
					newFrame.cand[s][j] = propagateDescendant
				}
			}
		}
	}

	var matches []Match
	for s := 0; s < nsel; s++ {
		sel := &vm.prog.Selectors[s]
		for j := range ownCand[s] {
			c := &sel.Compounds[j]
			if !compoundMatchesBase(c, elem, idx, typeIdx) {
				continue
			}
			if c.RequiresTotal() {
				if parent != nil && j == len(sel.Compounds)-1 {
					parent.pendingFromEnd = append(parent.pendingFromEnd, pendingEntry{
						locator: sel.Locator, compound: c,
						childIdxAtPush: idx, typeIdxAtPush: typeIdx, tag: elem.Tag,
						ref: ref,
					})
				}
				continue
			}
			nj := j + 1
			if nj == len(sel.Compounds) {
				matches = append(matches, Match{Locator: sel.Locator, Ref: ref})
				continue
			}
			switch sel.Combs[j] {
			case Descendant:
				newFrame.cand[s][nj] = propagateDescendant
			case Child:
				if _, ok := newFrame.cand[s][nj]; !ok {
					newFrame.cand[s][nj] = oneShotChild
				}
			case AdjacentSibling:
				newFrame.pendingSelfAdj[s][nj] = true
			case GeneralSibling:
				newFrame.pendingSelfGen[s][nj] = true
			}
		}
	}

	vm.frames = append(vm.frames, newFrame)
	return matches
}

// Pop closes the innermost open element and returns the FromEnd
// pseudo-class matches among its children that resolve now that its
// final child count is known. Ordinary matches are returned only by Push.
func (vm *VM) Pop() []Match {
	if len(vm.frames) == 0 {
		return nil
	}
	frame := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	parent := vm.top()

	var matches []Match
	total := frame.childIndex
	for _, pe := range frame.pendingFromEnd {
		typeTotal := frame.typeIndex[pe.tag]
		idxFromEnd := total - pe.childIdxAtPush + 1
		typeIdxFromEnd := typeTotal - pe.typeIdxAtPush + 1
		if compoundMatchesFromEnd(pe.compound, idxFromEnd, typeIdxFromEnd) {
			matches = append(matches, Match{Locator: pe.locator, Ref: pe.ref})
		}
	}

	if parent != nil {
		nsel := len(vm.prog.Selectors)
		for s := 0; s < nsel; s++ {
			parent.adjacentPending[s] = frame.pendingSelfAdj[s]
			for j := range frame.pendingSelfGen[s] {
				parent.siblingSet[s][j] = true
			}
		}
	}

	return matches
}

func compoundMatchesBase(c *Compound, e *Element, idx, typeIdx int) bool {
	if !c.Universal && c.Tag != "" {
		name := e.Tag
		if e.Namespace == "" {
			name = strings.ToLower(name)
		}
		if name != c.Tag {
			return false
		}
	}
	if c.ID != "" && c.ID != e.ID {
		return false
	}
	for _, cls := range c.Classes {
		if !hasClass(e.Classes, cls) {
			return false
		}
	}
	for _, p := range c.Attrs {
		val, ok := e.AttrValue(p.Name)
		if !attrMatches(p, val, ok) {
			return false
		}
	}
	for _, n := range c.Nth {
		if n.FromEnd {
			continue
		}
		if n.Kind == NthChild {
			if !n.Matches(idx) {
				return false
			}
		} else if !n.Matches(typeIdx) {
			return false
		}
	}
	for i := range c.Not {
		if compoundMatchesBase(&c.Not[i], e, idx, typeIdx) {
			return false
		}
	}
	return true
}

func compoundMatchesFromEnd(c *Compound, idxFromEnd, typeIdxFromEnd int) bool {
	for _, n := range c.Nth {
		if !n.FromEnd {
			continue
		}
		if n.Kind == NthChild {
			if !n.Matches(idxFromEnd) {
				return false
			}
		} else if !n.Matches(typeIdxFromEnd) {
			return false
		}
	}
	return true
}

func hasClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

func attrMatches(p AttrPredicate, val string, present bool) bool {
	if p.Op == AttrPresent {
		return present
	}
	if !present {
		return false
	}
	switch p.Op {
	case AttrEquals:
		return val == p.Value
	case AttrIncludes:
		for _, word := range strings.Fields(val) {
			if word == p.Value {
				return true
			}
		}
		return false
	case AttrDashMatch:
		return val == p.Value || strings.HasPrefix(val, p.Value+"-")
	case AttrPrefix:
		return p.Value != "" && strings.HasPrefix(val, p.Value)
	case AttrSuffix:
		return p.Value != "" && strings.HasSuffix(val, p.Value)
	case AttrSubstring:
		return p.Value != "" && strings.Contains(val, p.Value)
	default:
		return false
	}
}
