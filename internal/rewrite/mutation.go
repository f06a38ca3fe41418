package rewrite

import (
	"html"
	"strings"

	"github.com/streamrewrite/htmlrewriter/internal/dispatch"
)

// insertion is one before/after/prepend/append/replace/set-inner-content
// operation recorded by a handler.
type insertion struct {
	markup string
	ct     dispatch.ContentType
}

func (in insertion) render() string {
	if in.ct == dispatch.Text {
		return html.EscapeString(in.markup)
	}
	return in.markup
}

// mutationLog accumulates every mutation a handler recorded against one
// element, applied by the controller when that element's start and end
// tags are rendered (spec §3 "Mutation log").
type mutationLog struct {
	tagRename string

	attrSet      map[string]string
	attrSetOrder []string
	attrRemove   map[string]bool

	before, after, prepend, appendOps []insertion
	setInner                         *insertion
	replace                          *insertion

	removed     bool
	keepContent bool

	endTagHandlers []func(dispatch.EndTagHandle) error
	endTagRename   string
	endTagBefore   []insertion
	endTagAfter    []insertion
	endTagRemoved  bool
}

func newMutationLog() *mutationLog {
	return &mutationLog{
		attrSet:    map[string]string{},
		attrRemove: map[string]bool{},
	}
}

func renderInsertions(ins []insertion) string {
	var b strings.Builder
	for _, in := range ins {
		b.WriteString(in.render())
	}
	return b.String()
}
