package htmlrewriter

import "github.com/streamrewrite/htmlrewriter/internal/dispatch"

// ContentType flags markup passed to a mutation method: Text is
// HTML-escaped before insertion, HTML is emitted verbatim.
type ContentType = dispatch.ContentType

const (
	Text ContentType = dispatch.Text
	HTML ContentType = dispatch.HTML
)

// AttrPair is one name/value pair returned by Element.Attributes.
type AttrPair = dispatch.AttrPair

// EndTag is passed to a callback registered via Element.OnEndTag,
// letting a handler adjust or remove an element's closing tag once it
// is actually reached.
type EndTag = dispatch.EndTagHandle

// Element is the mutation surface given to an element handler.
type Element = dispatch.ElementHandle

// TextChunk is passed to text handlers, one call per tokenizer-emitted
// text lexeme.
type TextChunk = dispatch.TextChunk

// Comment is passed to comment handlers.
type Comment = dispatch.CommentHandle

// Doctype is passed to the document-scope doctype handler.
type Doctype = dispatch.DoctypeHandle

// ElementHandler is invoked once for every element matching the
// selector it was registered against.
type ElementHandler = dispatch.ElementHandler

// TextHandler is invoked once per text chunk in scope.
type TextHandler = dispatch.TextHandler

// CommentHandler is invoked once per comment in scope.
type CommentHandler = dispatch.CommentHandler

// DoctypeHandler is invoked once for the document's doctype, if any.
type DoctypeHandler = dispatch.DoctypeHandler
