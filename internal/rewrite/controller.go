package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/streamrewrite/htmlrewriter/internal/dispatch"
	"github.com/streamrewrite/htmlrewriter/internal/limiter"
	"github.com/streamrewrite/htmlrewriter/internal/selector"
	"github.com/streamrewrite/htmlrewriter/internal/token"
)

// segment is one unit of the document's eventual serialized output. Most
// segments are immediately-known bytes (text, comments, insertions);
// a tag segment (tagPhase) defers rendering until flush time because its mutation log
// can still change — a FromEnd pseudo-class match resolves only once
// the element's parent closes (see DESIGN.md Open Question 3).
type segment struct {
	bytes string    // used when tag == nil
	tag   *tagPhase // used when tag != nil
}

type tagPhase struct {
	open        bool // true = start-tag phase, false = end-tag phase
	name        string
	namespace   string
	attrs       []token.Attr
	selfClosing bool
	log         *mutationLog

	// raw is set when the start tag came from an eager-mode TagHint: no
	// decoded attribute list exists to reconstruct the tag from, so
	// rendering splices mutations into these source bytes instead. Nil
	// for lexeme-sourced tags, which render from attrs as usual.
	raw []byte

	// voidClose marks the end-tag phase of a self-closing start tag: no
	// literal closing tag exists in the source, so only end-tag
	// before/after insertions render, never "</name>" itself.
	voidClose bool
}

// Controller is the RewriteController (spec §4.5): it drives the
// tokenizer, maintains the open-element stack, evaluates the selector
// VM, and dispatches matches to the content-handlers dispatcher.
type Controller struct {
	Tok  *token.Tokenizer
	vm   *selector.VM
	disp *dispatch.Dispatcher
	prog *selector.Program
	lim  *limiter.Limiter

	stk stack

	// deferFlush is set whenever the program contains a FromEnd
	// pseudo-class anywhere. Such a program cannot guarantee an
	// element's tags are final until its ancestor closes, so the whole
	// document's segment list is held until End() instead of being
	// streamed out incrementally. Without FromEnd pseudo-classes every
	// element's match set is fully known at push time and segments are
	// written out the moment they're safe.
	deferFlush bool

	segs []segment
	out  func([]byte) error

	suppressDepth int // >0 while inside a removed(non-keep-content)/replaced ancestor

	// nextElemID/elemInfo back FromEnd pseudo-class dispatch. A FromEnd
	// match surfaces from vm.Pop() on the *parent's* frame, long after
	// the matched child's own openElement stack entry is gone — so the
	// child's name/attrs/mutation log have to survive under a stable id
	// (the VM's Push ref) rather than a pointer into the stack slice,
	// which openElement() freely reallocates as siblings are pushed.
	// Only populated when deferFlush, since pendingFromEnd is only ever
	// populated when the program has a FromEnd pseudo-class somewhere.
	nextElemID int
	elemInfo   map[int]*elemRegEntry
}

type elemRegEntry struct {
	name      string
	namespace string
	attrs     []token.Attr
	log       *mutationLog
}

// New returns a Controller bound to prog and disp, writing finalized
// bytes to out as soon as they are known to be final.
func New(prog *selector.Program, disp *dispatch.Dispatcher, lim *limiter.Limiter, strict bool, out func([]byte) error) *Controller {
	c := &Controller{
		Tok:        token.New(strict),
		vm:         selector.New(prog),
		disp:       disp,
		prog:       prog,
		lim:        lim,
		deferFlush: prog.HasBackwardPseudo(),
		out:        out,
	}
	if c.deferFlush {
		c.elemInfo = map[int]*elemRegEntry{}
	}
	if !prog.NeedsAttributes() {
		// Conservative, whole-document mode decision (see DESIGN.md): safe
		// because eager mode is only used when no compound in the program
		// needs anything beyond a tag name.
		c.Tok.RequestMode(token.Eager)
	}
	return c
}

// Depth reports the open-element stack's current height, for the
// stream driver to decide when a safe incremental flush point exists.
func (c *Controller) Depth() int { return c.stk.depth() }

// HandleEvent processes one tokenizer Event.
func (c *Controller) HandleEvent(ev token.Event) error {
	switch ev.Kind {
	case token.LexemeEvent:
		return c.handleLexeme(ev.Lexeme)
	case token.TagHintEvent:
		return c.handleHint(ev.Hint)
	}
	return nil
}

func (c *Controller) handleLexeme(lex token.Lexeme) error {
	switch lex.Kind {
	case token.StartTagToken:
		return c.openElement(lex.Name, lex.Attrs, lex.SelfClosing, nil)
	case token.EndTagToken:
		return c.closeElement(lex.Name)
	case token.TextToken:
		return c.handleText(lex.Text)
	case token.CommentToken:
		return c.handleComment(lex.Text)
	case token.DoctypeToken:
		return c.handleDoctype(lex.Doctype)
	case token.CDataToken:
		return c.emitRaw("<![CDATA[" + lex.Text + "]]>")
	}
	return nil
}

func (c *Controller) handleHint(h token.TagHint) error {
	switch h.Kind {
	case token.StartTagToken:
		return c.openElement(h.Name, nil, h.SelfClosing, h.Raw)
	case token.EndTagToken:
		return c.closeElement(h.Name)
	}
	return nil
}

func classesOf(attrs []token.Attr) []string {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, "class") {
			return strings.Fields(a.Decoded())
		}
	}
	return nil
}

func idOf(attrs []token.Attr) string {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, "id") {
			return a.Decoded()
		}
	}
	return ""
}

func attrValueFunc(attrs []token.Attr, namespace string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		for _, a := range attrs {
			if attrKey(namespace, a.Name) == attrKey(namespace, name) {
				return a.Decoded(), true
			}
		}
		return "", false
	}
}

// openElement handles both Lexemes and TagHints for a start tag: pushes
// the open-element stack and selector VM, dispatches element handlers
// for whatever matched immediately, and schedules the element's
// start-tag segment.
func (c *Controller) openElement(name string, attrs []token.Attr, selfClosing bool, raw []byte) error {
	if err := c.lim.Increase(c.elementAccountSize(name, attrs)); err != nil {
		return err
	}
	oe := c.stk.push(name, attrs, selfClosing, raw)

	elem := &selector.Element{
		Tag:       name,
		Namespace: oe.namespace,
		ID:        idOf(attrs),
		Classes:   classesOf(attrs),
		AttrValue: attrValueFunc(attrs, oe.namespace),
	}
	if oe.namespace == "" {
		elem.Tag = strings.ToLower(elem.Tag)
	}

	log := newMutationLog()
	oe.mutations = log
	oe.name = name
	oe.foreign = elem.Namespace != ""

	var ref any
	if c.deferFlush {
		c.nextElemID++
		id := c.nextElemID
		c.elemInfo[id] = &elemRegEntry{name: name, namespace: oe.namespace, attrs: attrs, log: log}
		ref = id
	}

	matches := c.vm.Push(elem, ref)

	if err := c.dispatchElementMatches(matches, oe, name, attrs); err != nil {
		return err
	}

	c.pushOpenSegments(oe, name, attrs, selfClosing)

	if selfClosing {
		// A self-closing element is pushed then immediately popped with
		// no children ever pushed between, so it can never itself carry
		// a pending FromEnd entry; this Pop always returns empty, but
		// routes through the same path as closeElement/End for
		// consistency.
		fromEnd := c.vm.Pop()
		if err := c.dispatchFromEndMatches(fromEnd); err != nil {
			return err
		}
		c.lim.Decrease(c.elementAccountSize(name, attrs))
		c.pushCloseSegments(oe, name)
	}
	return nil
}

// elementAccountSize estimates the memory an open-element stack entry
// plus its companion selector-VM frame cost (spec §4.1 "every growth-
// capable structure... routes through" the limiter; §4.3 "every
// allocation (partial-state entries, nth counters) routes through the
// memory limiter"). The VM's Frame itself stays decoupled from the
// limiter (internal/selector has no dependency on internal/limiter, by
// design — see DESIGN.md), so the controller accounts for it here on
// the VM's behalf, using the one fact it has that the VM doesn't: how
// many selectors the program compiled.
func (c *Controller) elementAccountSize(name string, attrs []token.Attr) uint64 {
	n := uint64(len(name))
	for _, a := range attrs {
		n += uint64(len(a.Name)) + uint64(len(a.Val))
	}
	n += uint64(len(c.prog.Selectors)) * vmFrameBytesPerSelector
	return n
}

// vmFrameBytesPerSelector is a fixed per-selector estimate of a Frame's
// five map-backed candidate sets (internal/selector/vm.go).
const vmFrameBytesPerSelector = 64

func (c *Controller) dispatchElementMatches(matches []selector.Match, oe *openElement, name string, attrs []token.Attr) error {
	if len(matches) == 0 {
		return nil
	}
	var locators []int
	for _, m := range matches {
		if oe.locators[m.Locator] {
			continue
		}
		oe.locators[m.Locator] = true
		locators = append(locators, m.Locator)
	}
	if len(locators) == 0 {
		return nil
	}
	sortInts(locators)
	eh := &elementHandle{name: name, namespace: oe.namespace, attrs: attrs, log: oe.mutations}
	if err := c.disp.DispatchElement(locators, eh); err != nil {
		return fmt.Errorf("rewrite: element handler: %w", err)
	}
	return nil
}

// dispatchFromEndMatches handles Matches surfaced by vm.Pop(): each one's
// Ref names the id of the element that actually matched (a descendant of
// whichever element frame just popped, per the VM's deferred-resolution
// scheme — see internal/selector/vm.go), never the popped element itself.
// It looks that element's name/attrs/mutation log up in elemInfo, since
// its stack entry is long gone by the time this runs.
func (c *Controller) dispatchFromEndMatches(matches []selector.Match) error {
	if len(matches) == 0 {
		return nil
	}
	byID := map[int][]selector.Match{}
	var order []int
	for _, m := range matches {
		id, _ := m.Ref.(int)
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], m)
	}
	sortInts(order)
	for _, id := range order {
		info := c.elemInfo[id]
		if info == nil {
			continue
		}
		locators := make([]int, 0, len(byID[id]))
		for _, m := range byID[id] {
			locators = append(locators, m.Locator)
		}
		sortInts(locators)
		eh := &elementHandle{name: info.name, namespace: info.namespace, attrs: info.attrs, log: info.log}
		if err := c.disp.DispatchElement(locators, eh); err != nil {
			return fmt.Errorf("rewrite: element handler: %w", err)
		}
		// A FromEnd pendingEntry resolves exactly once, since an element
		// has exactly one parent, so the registry entry is never needed
		// again once dispatched.
		delete(c.elemInfo, id)
	}
	return nil
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// pushOpenSegments schedules the before-markup/start-tag/prepend-markup
// segments for oe, honoring its mutation log's removed/replace state.
func (c *Controller) pushOpenSegments(oe *openElement, name string, attrs []token.Attr, selfClosing bool) {
	log := oe.mutations
	c.emitString(renderInsertions(log.before))

	switch {
	case log.replace != nil:
		c.emitString(log.replace.render())
		c.suppressDepth++
	case log.removed && !log.keepContent:
		c.suppressDepth++
	case log.removed: // keepContent
		// tag bytes suppressed, children still flow
	default:
		if c.suppressDepth == 0 {
			c.segs = append(c.segs, segment{tag: &tagPhase{open: true, name: name, namespace: oe.namespace, attrs: attrs, selfClosing: selfClosing, log: log, raw: oe.raw}})
		}
	}

	if !(log.replace != nil || (log.removed && !log.keepContent)) {
		c.emitString(renderInsertions(log.prepend))
		if log.setInner != nil {
			// Original children are suppressed entirely and replaced by
			// this markup; pushCloseSegments un-suppresses symmetrically.
			c.emitString(log.setInner.render())
			c.suppressDepth++
		}
	}
}

func (c *Controller) pushCloseSegments(oe *openElement, name string) {
	log := oe.mutations
	suppressedAll := log.replace != nil || (log.removed && !log.keepContent)
	innerReplaced := !suppressedAll && log.setInner != nil

	if innerReplaced {
		// Un-suppress before appendOps/end-tag: those are this element's
		// own close-time content, not part of the suppressed children.
		c.suppressDepth--
	}

	if !suppressedAll {
		c.emitString(renderInsertions(log.appendOps))
		// A keep-content removal drops the end tag as well as the start tag.
		if !log.removed && c.suppressDepth == 0 {
			c.segs = append(c.segs, segment{tag: &tagPhase{open: false, name: name, log: log, voidClose: oe.selfClose}})
		}
	}

	if suppressedAll {
		c.suppressDepth--
	}

	c.emitString(renderInsertions(log.after))
}

func (c *Controller) closeElement(name string) error {
	// stk.pop returns innermost-first, matching vm.Pop()'s own LIFO
	// order one-for-one.
	closed := c.stk.pop(name)
	for _, oe := range closed {
		fromEnd := c.vm.Pop()
		if err := c.dispatchFromEndMatches(fromEnd); err != nil {
			return err
		}
		if len(oe.mutations.endTagHandlers) > 0 {
			eth := &endTagHandle{name: oe.name, log: oe.mutations}
			for _, fn := range oe.mutations.endTagHandlers {
				if err := fn(eth); err != nil {
					return fmt.Errorf("rewrite: end tag handler: %w", err)
				}
			}
		}
		c.lim.Decrease(c.elementAccountSize(oe.name, oe.attrs))
		c.pushCloseSegments(&oe, oe.name)
	}
	return nil
}

func (c *Controller) handleText(text string) error {
	if c.suppressDepth > 0 {
		return nil
	}
	tc := &textChunk{text: text, lastInChunk: true}
	if err := c.disp.DispatchDocumentText(tc); err != nil {
		return fmt.Errorf("rewrite: document text handler: %w", err)
	}
	if locs := c.activeTextLocators(); len(locs) > 0 {
		if err := c.disp.DispatchText(locs, tc); err != nil {
			return fmt.Errorf("rewrite: text handler: %w", err)
		}
	}
	c.emitString(tc.render())
	return nil
}

func (c *Controller) handleComment(text string) error {
	if c.suppressDepth > 0 {
		return nil
	}
	ch := &commentHandle{text: text}
	if err := c.disp.DispatchDocumentComment(ch); err != nil {
		return fmt.Errorf("rewrite: document comment handler: %w", err)
	}
	if locs := c.activeTextLocators(); len(locs) > 0 {
		if err := c.disp.DispatchComment(locs, ch); err != nil {
			return fmt.Errorf("rewrite: comment handler: %w", err)
		}
	}
	c.emitString(ch.render())
	return nil
}

// activeTextLocators returns the locators of every selector that has
// already matched an element currently open on the stack — these are
// the selectors whose text/comment handlers should see content nested
// inside the matched element.
func (c *Controller) activeTextLocators() []int {
	seen := map[int]bool{}
	var out []int
	for i := range c.stk.entries {
		for loc := range c.stk.entries[i].locators {
			if !seen[loc] {
				seen[loc] = true
				out = append(out, loc)
			}
		}
	}
	sortInts(out)
	return out
}

func (c *Controller) handleDoctype(d token.Doctype) error {
	dh := &doctypeHandle{name: d.Name, publicID: d.PublicID, systemID: d.SystemID, hasPublic: d.PublicID != "", hasSystem: d.SystemID != ""}
	if err := c.disp.DispatchDocumentDoctype(dh); err != nil {
		return fmt.Errorf("rewrite: document doctype handler: %w", err)
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE ")
	b.WriteString(d.Name)
	if d.PublicID != "" || d.SystemID != "" {
		if d.PublicID != "" {
			b.WriteString(" PUBLIC " + strconv.Quote(d.PublicID))
		} else {
			b.WriteString(" SYSTEM")
		}
		if d.SystemID != "" {
			b.WriteString(" " + strconv.Quote(d.SystemID))
		}
	}
	b.WriteString(">")
	return c.emitRaw(b.String())
}

func (c *Controller) emitRaw(s string) error {
	c.emitString(s)
	return nil
}

func (c *Controller) emitString(s string) {
	if s == "" || c.suppressDepth > 0 {
		return
	}
	c.segs = append(c.segs, segment{bytes: s})
}

// Flush writes out every segment accumulated so far that is safe to
// finalize: in streaming mode (no FromEnd pseudo-classes anywhere in
// the program) that's everything once the stack returns to depth 0;
// in deferred mode nothing is written until End.
func (c *Controller) Flush() error {
	if c.deferFlush {
		return nil
	}
	if c.stk.depth() != 0 {
		return nil
	}
	return c.drainSegments()
}

// End closes any still-open elements implicitly (HTML5 leniency) and
// writes out everything remaining.
func (c *Controller) End() error {
	for _, oe := range c.stk.popAll() {
		fromEnd := c.vm.Pop()
		if err := c.dispatchFromEndMatches(fromEnd); err != nil {
			return err
		}
		c.lim.Decrease(c.elementAccountSize(oe.name, oe.attrs))
		c.pushCloseSegments(&oe, oe.name)
	}
	return c.drainSegments()
}

func (c *Controller) drainSegments() error {
	for _, seg := range c.segs {
		var s string
		if seg.tag != nil {
			s = renderTagPhase(seg.tag)
		} else {
			s = seg.bytes
		}
		if s == "" {
			continue
		}
		if err := c.out([]byte(s)); err != nil {
			return err
		}
	}
	c.segs = c.segs[:0]
	return nil
}

func renderTagPhase(t *tagPhase) string {
	log := t.log
	if t.open {
		if t.attrs == nil && t.raw != nil {
			return renderHintOpenTag(t)
		}
		name := t.name
		if log.tagRename != "" {
			name = log.tagRename
		}
		var b strings.Builder
		b.WriteString("<")
		b.WriteString(name)
		seen := map[string]bool{}
		for _, a := range t.attrs {
			key := attrKey(t.namespace, a.Name)
			if log.attrRemove[key] || seen[key] {
				continue
			}
			seen[key] = true
			val := a.Val
			if v, ok := log.attrSet[key]; ok {
				val = v
			}
			writeAttr(&b, a.Name, val)
		}
		for _, key := range log.attrSetOrder {
			if seen[key] {
				continue
			}
			writeAttr(&b, key, log.attrSet[key])
		}
		if t.selfClosing {
			b.WriteString(" /")
		}
		b.WriteString(">")
		return b.String()
	}

	if log.endTagRemoved {
		return ""
	}
	before := renderInsertions(log.endTagBefore)
	after := renderInsertions(log.endTagAfter)
	if t.voidClose {
		// No literal closing tag exists in the source; only the
		// surrounding insertions from an OnEndTag handler render.
		return before + after
	}
	name := t.name
	if log.endTagRename != "" {
		name = log.endTagRename
	}
	return before + "</" + name + ">" + after
}

// renderHintOpenTag renders a start tag opened from an eager-mode
// TagHint, whose attributes were never decoded. Instead of reconstructing
// the tag from a list it doesn't have, it splices any renamed tag name
// and newly set attributes directly into the original source bytes,
// leaving every byte it doesn't understand untouched. Removing an
// attribute the hint never exposed is a no-op: eager mode can't locate
// bytes it never parsed.
func renderHintOpenTag(t *tagPhase) string {
	log := t.log
	raw := t.raw

	i := 1
	for i < len(raw) && !isTagNameBoundary(raw[i]) {
		i++
	}
	name := t.name
	if log.tagRename != "" {
		name = log.tagRename
	}

	end := len(raw) - 1 // index of the final '>'
	insertAt := end
	if end > 0 && raw[end-1] == '/' {
		insertAt = end - 1
	}

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(name)
	b.Write(raw[i:insertAt])
	for _, key := range log.attrSetOrder {
		writeAttr(&b, key, log.attrSet[key])
	}
	b.Write(raw[insertAt:])
	return b.String()
}

func isTagNameBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '/', '>':
		return true
	default:
		return false
	}
}

func writeAttr(b *strings.Builder, name, val string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(strings.NewReplacer(`&`, "&amp;", `"`, "&quot;").Replace(val))
	b.WriteString(`"`)
}
