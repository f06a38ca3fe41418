package htmlrewriter

// DefaultMaxAllowedMemoryUsage is the memory ceiling applied when a
// Settings value leaves MemorySettings.MaxAllowedMemoryUsage at zero.
const DefaultMaxAllowedMemoryUsage = 64 << 20 // 64 MiB

// DefaultPreallocatedParsingBufferSize is the value normalize fills in
// for MemorySettings.PreallocatedParsingBufferSize when it is left at
// zero. The input buffer does not read it.
const DefaultPreallocatedParsingBufferSize = 4096

// MemorySettings bounds the rewriter's working-set size (spec §5).
// MaxAllowedMemoryUsage is a hard ceiling: once exceeded, Write/End
// return a RewritingError{MemoryLimitExceeded} and the instance is
// poisoned. PreallocatedParsingBufferSize is defaulted by normalize but
// not read: the input buffer starts empty and grows on demand, and the
// value is never enforced as a limit.
type MemorySettings struct {
	MaxAllowedMemoryUsage         uint64
	PreallocatedParsingBufferSize uint64
}

// ElementContentHandlers binds one CSS selector to up to three
// callbacks: Element runs once per matched element, Text once per text
// chunk inside its scope, Comments once per comment inside its scope.
// Any of the three may be left nil.
type ElementContentHandlers struct {
	Selector string
	Element  ElementHandler
	Text     TextHandler
	Comments CommentHandler
}

// DocumentContentHandlers registers handlers scoped to the whole
// document rather than to a selector match. Doctype fires for each
// doctype in the input; Text and Comments fire for every text chunk and
// comment outside removed or replaced content, whether or not an
// ElementContentHandlers selector also covers it.
type DocumentContentHandlers struct {
	Doctype  DoctypeHandler
	Text     TextHandler
	Comments CommentHandler
}

// Settings configures a Rewriter (spec §6 "Construction"). Handler
// lists are registered and dispatched in the order they appear here.
type Settings struct {
	ElementContentHandlers  []ElementContentHandlers
	DocumentContentHandlers []DocumentContentHandlers

	Memory MemorySettings

	// Strict is passed to the tokenizer, which does not act on it: strict
	// and lenient rewrites recover from parse errors identically, and
	// RewritingError{ParsingAmbiguity} arises only from an eager/full
	// mode switch inside a raw-text element's content.
	Strict bool

	// Encoding names the input's encoding. Only the exact label "utf-8"
	// (the default, used when empty) is accepted; any other label,
	// including other spellings of UTF-8 and other ASCII-compatible
	// encodings, makes NewRewriter return an EncodingError with Reason
	// UnknownEncoding.
	Encoding string
}

// normalize fills in zero-valued fields with their documented defaults.
// It does not mutate the caller's Settings value.
func (s Settings) normalize() Settings {
	if s.Memory.MaxAllowedMemoryUsage == 0 {
		s.Memory.MaxAllowedMemoryUsage = DefaultMaxAllowedMemoryUsage
	}
	if s.Memory.PreallocatedParsingBufferSize == 0 {
		s.Memory.PreallocatedParsingBufferSize = DefaultPreallocatedParsingBufferSize
	}
	if s.Encoding == "" {
		s.Encoding = "utf-8"
	}
	return s
}
