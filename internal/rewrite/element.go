package rewrite

import (
	"strings"

	"github.com/streamrewrite/htmlrewriter/internal/dispatch"
	"github.com/streamrewrite/htmlrewriter/internal/token"
)

// elementHandle is the dispatch.ElementHandle given to element handlers.
// It reads from the original Lexeme's attributes and records every
// mutation into log for the controller to apply when this element's
// start/end tags are rendered.
type elementHandle struct {
	name      string
	namespace string
	attrs     []token.Attr
	log       *mutationLog
}

var _ dispatch.ElementHandle = (*elementHandle)(nil)

func (e *elementHandle) TagName() string {
	if e.log.tagRename != "" {
		return e.log.tagRename
	}
	return e.name
}

func (e *elementHandle) SetTagName(name string) { e.log.tagRename = name }

func (e *elementHandle) Namespace() string { return e.namespace }

func attrKey(namespace, name string) string {
	if namespace != "" {
		return name // foreign content: case-sensitive
	}
	return strings.ToLower(name)
}

func (e *elementHandle) GetAttribute(name string) (string, bool) {
	key := attrKey(e.namespace, name)
	if e.log.attrRemove[key] {
		return "", false
	}
	if v, ok := e.log.attrSet[key]; ok {
		return v, true
	}
	for _, a := range e.attrs {
		if attrKey(e.namespace, a.Name) == key {
			return a.Decoded(), true
		}
	}
	return "", false
}

func (e *elementHandle) SetAttribute(name, value string) {
	key := attrKey(e.namespace, name)
	if _, already := e.log.attrSet[key]; !already {
		e.log.attrSetOrder = append(e.log.attrSetOrder, key)
	}
	e.log.attrSet[key] = value
	delete(e.log.attrRemove, key)
}

func (e *elementHandle) RemoveAttribute(name string) {
	key := attrKey(e.namespace, name)
	e.log.attrRemove[key] = true
	delete(e.log.attrSet, key)
}

func (e *elementHandle) Attributes() []dispatch.AttrPair {
	var out []dispatch.AttrPair
	seen := map[string]bool{}
	for _, a := range e.attrs {
		key := attrKey(e.namespace, a.Name)
		if e.log.attrRemove[key] || seen[key] {
			continue
		}
		seen[key] = true
		if v, ok := e.log.attrSet[key]; ok {
			out = append(out, dispatch.AttrPair{Name: a.Name, Value: v})
		} else {
			out = append(out, dispatch.AttrPair{Name: a.Name, Value: a.Decoded()})
		}
	}
	for _, key := range e.log.attrSetOrder {
		if seen[key] {
			continue
		}
		out = append(out, dispatch.AttrPair{Name: key, Value: e.log.attrSet[key]})
	}
	return out
}

func (e *elementHandle) Before(markup string, ct dispatch.ContentType) {
	e.log.before = append(e.log.before, insertion{markup, ct})
}

func (e *elementHandle) After(markup string, ct dispatch.ContentType) {
	e.log.after = append(e.log.after, insertion{markup, ct})
}

func (e *elementHandle) Prepend(markup string, ct dispatch.ContentType) {
	e.log.prepend = append(e.log.prepend, insertion{markup, ct})
}

func (e *elementHandle) Append(markup string, ct dispatch.ContentType) {
	e.log.appendOps = append(e.log.appendOps, insertion{markup, ct})
}

func (e *elementHandle) SetInnerContent(markup string, ct dispatch.ContentType) {
	e.log.setInner = &insertion{markup, ct}
}

func (e *elementHandle) Replace(markup string, ct dispatch.ContentType) {
	e.log.replace = &insertion{markup, ct}
}

func (e *elementHandle) Remove() { e.log.removed = true }

func (e *elementHandle) RemoveAndKeepContent() {
	e.log.removed = true
	e.log.keepContent = true
}

func (e *elementHandle) OnEndTag(fn func(dispatch.EndTagHandle) error) {
	e.log.endTagHandlers = append(e.log.endTagHandlers, fn)
}

// endTagHandle is given to callbacks registered via OnEndTag, once the
// element's end tag is actually reached.
type endTagHandle struct {
	name string
	log  *mutationLog
}

var _ dispatch.EndTagHandle = (*endTagHandle)(nil)

func (e *endTagHandle) Name() string {
	if e.log.endTagRename != "" {
		return e.log.endTagRename
	}
	return e.name
}

func (e *endTagHandle) SetName(name string) { e.log.endTagRename = name }

func (e *endTagHandle) Before(markup string, ct dispatch.ContentType) {
	e.log.endTagBefore = append(e.log.endTagBefore, insertion{markup, ct})
}

func (e *endTagHandle) After(markup string, ct dispatch.ContentType) {
	e.log.endTagAfter = append(e.log.endTagAfter, insertion{markup, ct})
}

func (e *endTagHandle) Remove() { e.log.endTagRemoved = true }
