// Package dispatch implements the content-handlers dispatcher (spec
// §4.4): it maps selector-match locators to user handler bundles and
// invokes them, plus the three document-scope handler lists, in a fixed,
// deterministic order.
package dispatch

// ContentType flags markup passed to a mutation method: Text is
// HTML-escaped before insertion, HTML is emitted verbatim.
type ContentType uint8

const (
	Text ContentType = iota
	HTML
)

// AttrPair is one name/value pair returned by ElementHandle.Attributes.
type AttrPair struct {
	Name  string
	Value string
}

// EndTagHandle is passed to a callback registered via
// ElementHandle.OnEndTag, letting a handler adjust or remove an element's
// closing tag once it is actually reached.
type EndTagHandle interface {
	Name() string
	SetName(string)
	Before(markup string, ct ContentType)
	After(markup string, ct ContentType)
	Remove()
}

// ElementHandle is the mutation surface given to an element handler, per
// spec §4.4's "Element API".
type ElementHandle interface {
	TagName() string
	SetTagName(string)
	Namespace() string
	GetAttribute(name string) (string, bool)
	SetAttribute(name, value string)
	RemoveAttribute(name string)
	Attributes() []AttrPair

	Before(markup string, ct ContentType)
	After(markup string, ct ContentType)
	Prepend(markup string, ct ContentType)
	Append(markup string, ct ContentType)
	SetInnerContent(markup string, ct ContentType)
	Replace(markup string, ct ContentType)
	Remove()
	RemoveAndKeepContent()
	OnEndTag(fn func(EndTagHandle) error)
}

// TextChunk is passed to text handlers, one call per tokenizer-emitted
// text lexeme.
type TextChunk interface {
	Text() string
	LastInTextNode() bool
	Before(markup string, ct ContentType)
	After(markup string, ct ContentType)
	Replace(markup string, ct ContentType)
	Remove()
}

// CommentHandle is passed to comment handlers.
type CommentHandle interface {
	Text() string
	SetText(string)
	Before(markup string, ct ContentType)
	After(markup string, ct ContentType)
	Replace(markup string, ct ContentType)
	Remove()
}

// DoctypeHandle is passed to the document-scope doctype handler.
type DoctypeHandle interface {
	Name() string
	PublicID() (string, bool)
	SystemID() (string, bool)
}

type ElementHandler func(ElementHandle) error
type TextHandler func(TextChunk) error
type CommentHandler func(CommentHandle) error
type DoctypeHandler func(DoctypeHandle) error

// HandlerSet bundles the up-to-three callbacks a single selector can
// register (spec §3 "HandlerLocator").
type HandlerSet struct {
	Element  ElementHandler
	Text     TextHandler
	Comments CommentHandler
}

// Dispatcher holds every registered handler bundle plus the
// document-scope lists, and routes matched events to them in
// registration order (spec §4.4 "Ordering").
type Dispatcher struct {
	bySelector []HandlerSet

	docDoctype  []DoctypeHandler
	docComments []CommentHandler
	docText     []TextHandler
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a per-selector handler bundle and returns its locator —
// callers must register selectors and handler bundles in the same order
// so that locator equals the selector's registration index (guaranteeing
// spec's selector-registration-order dispatch).
func (d *Dispatcher) Register(h HandlerSet) int {
	d.bySelector = append(d.bySelector, h)
	return len(d.bySelector) - 1
}

// RegisterDocument adds one document-scope handler entry. Any of the
// three callbacks may be nil.
func (d *Dispatcher) RegisterDocument(doctype DoctypeHandler, text TextHandler, comments CommentHandler) {
	if doctype != nil {
		d.docDoctype = append(d.docDoctype, doctype)
	}
	if text != nil {
		d.docText = append(d.docText, text)
	}
	if comments != nil {
		d.docComments = append(d.docComments, comments)
	}
}

// DispatchElement invokes the element handler of every locator in
// locators, in the order the slice lists them, stopping at the first
// error. Callers pass locators sorted ascending, which is registration
// order.
func (d *Dispatcher) DispatchElement(locators []int, el ElementHandle) error {
	for _, loc := range locators {
		if h := d.bySelector[loc].Element; h != nil {
			if err := h(el); err != nil {
				return err
			}
		}
	}
	return nil
}

// DispatchText invokes the text handlers of every locator in locators.
func (d *Dispatcher) DispatchText(locators []int, chunk TextChunk) error {
	for _, loc := range locators {
		if h := d.bySelector[loc].Text; h != nil {
			if err := h(chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

// DispatchComment invokes the comment handlers of every locator in locators.
func (d *Dispatcher) DispatchComment(locators []int, c CommentHandle) error {
	for _, loc := range locators {
		if h := d.bySelector[loc].Comments; h != nil {
			if err := h(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// DispatchDocumentDoctype invokes every document-scope doctype handler.
func (d *Dispatcher) DispatchDocumentDoctype(dt DoctypeHandle) error {
	for _, h := range d.docDoctype {
		if err := h(dt); err != nil {
			return err
		}
	}
	return nil
}

// DispatchDocumentText invokes every document-scope text handler.
func (d *Dispatcher) DispatchDocumentText(chunk TextChunk) error {
	for _, h := range d.docText {
		if err := h(chunk); err != nil {
			return err
		}
	}
	return nil
}

// DispatchDocumentComment invokes every document-scope comment handler.
func (d *Dispatcher) DispatchDocumentComment(c CommentHandle) error {
	for _, h := range d.docComments {
		if err := h(c); err != nil {
			return err
		}
	}
	return nil
}
