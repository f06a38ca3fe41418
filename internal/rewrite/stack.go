// Package rewrite implements the RewriteController (spec §4.5): it owns
// the open-element stack, decides eager vs full tokenizer mode, drives
// the selector VM, and routes matches to the content-handlers
// dispatcher.
package rewrite

import (
	"strings"

	"github.com/streamrewrite/htmlrewriter/internal/token"
)

// openElement is one entry of the open-element stack: spec.md's
// "(local_name, namespace, flags)".
type openElement struct {
	name      string
	namespace string // "", "svg", or "math"
	foreign   bool   // true inside an svg/math subtree (case-sensitive matching)
	selfClose bool

	// attrs holds the original start-tag attributes (nil in eager mode),
	// kept so a FromEnd pseudo-class match — resolved only once the
	// parent closes — can still build an ElementHandle with the real
	// attribute set.
	attrs []token.Attr

	// raw holds the exact start-tag source bytes when this element was
	// opened from a TagHint (eager mode never decodes attrs, so the
	// renderer falls back to splicing new attributes into these bytes
	// instead of reconstructing the tag from a decoded attribute list
	// it never had). Nil when opened from a full Lexeme.
	raw []byte

	// locators holds every selector locator whose element handler has
	// already been dispatched for this element, so FromEnd-pseudo
	// matches resolved later at Pop never double-dispatch a locator
	// that an ordinary forward match already fired.
	locators map[int]bool

	mutations *mutationLog
}

// foreignRoots are the elements whose subtree switches to a foreign
// (case-sensitive) namespace per HTML5 foreign-content rules. Non-goal
// per spec.md: no full XML/XHTML namespace semantics, only what's
// needed for tag/attribute case-sensitivity during matching.
var foreignRoots = map[string]string{
	"svg":  "svg",
	"math": "math",
}

// stack is the controller's view of currently open elements.
type stack struct {
	entries []openElement
}

func (s *stack) depth() int {
	return len(s.entries)
}

func (s *stack) top() *openElement {
	if len(s.entries) == 0 {
		return nil
	}
	return &s.entries[len(s.entries)-1]
}

// push opens a new element whose local name is name (already whichever
// case the tag was written in). The child's namespace/foreign flag is
// derived from its parent, then possibly switched by name itself.
func (s *stack) push(name string, attrs []token.Attr, selfClose bool, raw []byte) *openElement {
	namespace, foreign := "", false
	if p := s.top(); p != nil {
		namespace, foreign = p.namespace, p.foreign
	}
	lower := strings.ToLower(name)
	if ns, ok := foreignRoots[lower]; ok {
		namespace, foreign = ns, true
	}
	e := openElement{name: name, namespace: namespace, foreign: foreign, selfClose: selfClose, attrs: attrs, raw: raw, locators: map[int]bool{}}
	if !selfClose {
		s.entries = append(s.entries, e)
		return &s.entries[len(s.entries)-1]
	}
	// Self-closing elements never stay open; return a detached value the
	// caller can still use for this single push/pop pair.
	return &e
}

// pop closes the innermost open element matching name. HTML allows
// mismatched/implicit closes; we pop down to (and including) the
// nearest matching entry, or do nothing if name isn't currently open —
// this mirrors WHATWG's "any other end tag" leniency spec.md requires
// (malformed HTML is tokenized, never rejected).
func (s *stack) pop(name string) []openElement {
	lower := strings.ToLower(name)
	idx := -1
	for i := len(s.entries) - 1; i >= 0; i-- {
		if strings.ToLower(s.entries[i].name) == lower {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	// Return innermost-first, matching the VM's own LIFO Pop order: the
	// caller pairs each entry here with one vm.Pop() call in sequence.
	n := len(s.entries) - idx
	closed := make([]openElement, n)
	for i := 0; i < n; i++ {
		closed[i] = s.entries[len(s.entries)-1-i]
	}
	s.entries = s.entries[:idx]
	return closed
}

// popAll closes every remaining open element, in innermost-first order,
// for use at end-of-document (spec §4.6 "asserts the open-element stack
// is empty (or closes implicitly per HTML5)").
func (s *stack) popAll() []openElement {
	closed := make([]openElement, len(s.entries))
	for i := range s.entries {
		closed[i] = s.entries[len(s.entries)-1-i]
	}
	s.entries = nil
	return closed
}
