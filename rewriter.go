// Package htmlrewriter implements a streaming, SAX-style HTML rewriter:
// bytes are fed in via Write, tokenized and matched against CSS
// selectors incrementally, and the (possibly mutated) output is handed
// to an OutputSink as soon as it is known to be final.
package htmlrewriter

import (
	"errors"

	"github.com/streamrewrite/htmlrewriter/internal/dispatch"
	"github.com/streamrewrite/htmlrewriter/internal/limiter"
	"github.com/streamrewrite/htmlrewriter/internal/rewrite"
	"github.com/streamrewrite/htmlrewriter/internal/selector"
	"github.com/streamrewrite/htmlrewriter/internal/stream"
	"github.com/streamrewrite/htmlrewriter/internal/token"
)

// OutputSink receives finalized output bytes in document order. A
// Rewriter never retains a slice passed to the sink after the call
// returns, so implementations that need to keep the bytes must copy
// them.
type OutputSink func([]byte) error

// state tracks a Rewriter's position in its one-way lifecycle:
// Active -> Finished (via a successful End) or Active -> Poisoned (via
// any RewritingError). There is no way back to Active.
type state int

const (
	stateActive state = iota
	stateFinished
	statePoisoned
)

// Rewriter drives one streaming rewrite. It is not safe for concurrent
// use — Write/End calls must be sequential, matching the single-threaded
// scheduling model the whole package is built around.
type Rewriter struct {
	state state
	ts    *stream.TransformStream
}

// NewRewriter builds a Rewriter from settings, compiling every
// ElementContentHandlers selector and wiring document-scope handlers,
// and arranges for finalized output to be handed to sink. It returns an
// *EncodingError if settings.Encoding cannot be honored, or a selector
// *selector.ParseError if any selector fails to parse.
func NewRewriter(settings Settings, sink OutputSink) (*Rewriter, error) {
	settings = settings.normalize()
	if settings.Encoding != "utf-8" {
		return nil, &EncodingError{Reason: UnknownEncoding, Label: settings.Encoding}
	}

	srcs := make([]string, len(settings.ElementContentHandlers))
	disp := dispatch.New()
	for i, h := range settings.ElementContentHandlers {
		srcs[i] = h.Selector
		disp.Register(dispatch.HandlerSet{Element: h.Element, Text: h.Text, Comments: h.Comments})
	}
	prog, err := selector.Compile(srcs)
	if err != nil {
		return nil, err
	}
	for _, h := range settings.DocumentContentHandlers {
		disp.RegisterDocument(h.Doctype, h.Text, h.Comments)
	}

	lim := limiter.New(settings.Memory.MaxAllowedMemoryUsage)
	ctrl := rewrite.New(prog, disp, lim, settings.Strict, func(p []byte) error { return sink(p) })

	return &Rewriter{ts: stream.New(ctrl, lim)}, nil
}

// Write feeds p into the rewriter, driving the tokenizer, selector VM,
// and content handlers as far as the currently buffered bytes allow,
// and flushing any output that is now known to be final. Calling Write
// after End or after a prior call returned an error is a programmer
// error and panics, matching the poison-on-reuse guard described in the
// package's design notes.
func (r *Rewriter) Write(p []byte) error {
	r.mustBeActive()
	if err := r.ts.Write(p); err != nil {
		return r.poison(err)
	}
	return nil
}

// End signals end-of-input: it drains the tokenizer, implicitly closes
// any still-open elements, flushes the final bytes, and transitions the
// Rewriter to Finished. Calling End twice, or calling Write afterward,
// panics.
func (r *Rewriter) End() error {
	r.mustBeActive()
	if err := r.ts.End(); err != nil {
		return r.poison(err)
	}
	r.state = stateFinished
	return nil
}

func (r *Rewriter) mustBeActive() {
	switch r.state {
	case stateFinished:
		panic("htmlrewriter: Write/End called after End")
	case statePoisoned:
		panic("htmlrewriter: Write/End called after a RewritingError")
	}
}

// poison transitions the Rewriter to Poisoned and classifies err into
// the matching RewritingError variant.
func (r *Rewriter) poison(err error) error {
	r.state = statePoisoned

	var exceeded *limiter.ExceededError
	if errors.As(err, &exceeded) {
		return &RewritingError{Reason: MemoryLimitExceeded, Err: err}
	}
	if errors.Is(err, token.ErrParsingAmbiguity) {
		return &RewritingError{Reason: ParsingAmbiguity, Err: err}
	}
	var re *RewritingError
	if errors.As(err, &re) {
		return err
	}
	return &RewritingError{Reason: ContentHandlerError, Err: err}
}

// RewriteString is the convenience wrapper for rewriting an entire
// document already held in memory: it builds a Rewriter, writes html in
// one call, ends it, and returns the accumulated output.
func RewriteString(html string, settings Settings) (string, error) {
	var out []byte
	rw, err := NewRewriter(settings, func(p []byte) error {
		out = append(out, p...)
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := rw.Write([]byte(html)); err != nil {
		return "", err
	}
	if err := rw.End(); err != nil {
		return "", err
	}
	return string(out), nil
}
