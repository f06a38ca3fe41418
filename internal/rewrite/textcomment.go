package rewrite

import "github.com/streamrewrite/htmlrewriter/internal/dispatch"

// textChunk is the dispatch.TextChunk given to text handlers. Unlike
// elements, a text chunk has no open/close phases: all of its mutations
// are resolved and applied to a single rendered fragment.
type textChunk struct {
	text        string
	lastInChunk bool
	before      []insertion
	after       []insertion
	replace     *insertion
	removed     bool
}

var _ dispatch.TextChunk = (*textChunk)(nil)

func (t *textChunk) Text() string           { return t.text }
func (t *textChunk) LastInTextNode() bool   { return t.lastInChunk }
func (t *textChunk) Before(markup string, ct dispatch.ContentType) {
	t.before = append(t.before, insertion{markup, ct})
}
func (t *textChunk) After(markup string, ct dispatch.ContentType) {
	t.after = append(t.after, insertion{markup, ct})
}
func (t *textChunk) Replace(markup string, ct dispatch.ContentType) {
	t.replace = &insertion{markup, ct}
}
func (t *textChunk) Remove() { t.removed = true }

// render produces the final bytes for this chunk after every handler
// that saw it has returned.
func (t *textChunk) render() string {
	out := renderInsertions(t.before)
	switch {
	case t.replace != nil:
		out += t.replace.render()
	case t.removed:
	default:
		out += t.text
	}
	out += renderInsertions(t.after)
	return out
}

// commentHandle is the dispatch.CommentHandle given to comment handlers.
type commentHandle struct {
	text    string
	newText string
	changed bool
	before  []insertion
	after   []insertion
	replace *insertion
	removed bool
}

var _ dispatch.CommentHandle = (*commentHandle)(nil)

func (c *commentHandle) Text() string { return c.text }
func (c *commentHandle) SetText(s string) {
	c.newText = s
	c.changed = true
}
func (c *commentHandle) Before(markup string, ct dispatch.ContentType) {
	c.before = append(c.before, insertion{markup, ct})
}
func (c *commentHandle) After(markup string, ct dispatch.ContentType) {
	c.after = append(c.after, insertion{markup, ct})
}
func (c *commentHandle) Replace(markup string, ct dispatch.ContentType) {
	c.replace = &insertion{markup, ct}
}
func (c *commentHandle) Remove() { c.removed = true }

func (c *commentHandle) render() string {
	out := renderInsertions(c.before)
	switch {
	case c.replace != nil:
		out += c.replace.render()
	case c.removed:
	default:
		text := c.text
		if c.changed {
			text = c.newText
		}
		out += "<!--" + text + "-->"
	}
	out += renderInsertions(c.after)
	return out
}

// doctypeHandle is the dispatch.DoctypeHandle given to the document-scope
// doctype handler. It is read-only: spec.md's Element API names no
// doctype mutation methods.
type doctypeHandle struct {
	name, publicID, systemID string
	hasPublic, hasSystem     bool
}

var _ dispatch.DoctypeHandle = (*doctypeHandle)(nil)

func (d *doctypeHandle) Name() string { return d.name }
func (d *doctypeHandle) PublicID() (string, bool) { return d.publicID, d.hasPublic }
func (d *doctypeHandle) SystemID() (string, bool) { return d.systemID, d.hasSystem }
