package htmlrewriter

import (
	"errors"
	"fmt"
)

// EncodingReason names why NewRewriter rejected an input encoding.
type EncodingReason int

const (
	// UnknownEncoding means the label did not resolve to any known
	// encoding.
	UnknownEncoding EncodingReason = iota
	// NonAsciiCompatibleEncoding means the label resolved to a real
	// encoding, but one that is not a superset of ASCII byte-for-byte —
	// the tokenizer requires this to scan tag/attribute delimiters
	// directly against the raw bytes. NewRewriter, which accepts only the
	// label "utf-8", never reports this reason.
	NonAsciiCompatibleEncoding
)

func (r EncodingReason) String() string {
	switch r {
	case UnknownEncoding:
		return "unknown encoding"
	case NonAsciiCompatibleEncoding:
		return "non-ASCII-compatible encoding"
	default:
		return "invalid encoding"
	}
}

// EncodingError is returned by NewRewriter when Settings.Encoding names
// an encoding the rewriter cannot operate on.
type EncodingError struct {
	Reason EncodingReason
	Label  string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("htmlrewriter: %s: %q", e.Reason, e.Label)
}

func (e *EncodingError) Is(target error) bool {
	var ee *EncodingError
	if errors.As(target, &ee) {
		return e.Reason == ee.Reason
	}
	return false
}

// RewritingReason names the class of fault that poisoned a Rewriter.
type RewritingReason int

const (
	// MemoryLimitExceeded means Settings.Memory.MaxAllowedMemoryUsage was
	// exceeded by the input buffer, the open-element stack, or the
	// selector VM's in-flight frames.
	MemoryLimitExceeded RewritingReason = iota
	// ParsingAmbiguity means the tokenizer was asked to leave eager mode
	// while inside a raw-text element's content, where it cannot tell
	// safely where that element ends (token.ErrParsingAmbiguity).
	// Settings.Strict adds no further cases.
	ParsingAmbiguity
	// ContentHandlerError means a user-supplied handler returned a
	// non-nil error; Err holds that error unchanged.
	ContentHandlerError
)

func (r RewritingReason) String() string {
	switch r {
	case MemoryLimitExceeded:
		return "memory limit exceeded"
	case ParsingAmbiguity:
		return "parsing ambiguity"
	case ContentHandlerError:
		return "content handler error"
	default:
		return "rewriting error"
	}
}

// RewritingError is returned by Write/End once the Rewriter is
// poisoned. Every RewritingError poisons its instance; there is no
// runtime-recoverable variant.
type RewritingError struct {
	Reason RewritingReason
	Err    error
}

func (e *RewritingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("htmlrewriter: %s", e.Reason)
	}
	return fmt.Sprintf("htmlrewriter: %s: %s", e.Reason, e.Err)
}

func (e *RewritingError) Unwrap() error {
	return e.Err
}

func (e *RewritingError) Is(target error) bool {
	var re *RewritingError
	if errors.As(target, &re) {
		return e.Reason == re.Reason
	}
	return false
}
