package stream

import (
	"github.com/streamrewrite/htmlrewriter/internal/limiter"
	"github.com/streamrewrite/htmlrewriter/internal/rewrite"
	"github.com/streamrewrite/htmlrewriter/internal/token"
)

// TransformStream is the spec §4.6 component: it owns the input buffer
// and drives ctrl.Tok chunk by chunk, handing every resulting Event to
// the RewriteController and flushing finalized bytes as soon as they're
// safe to emit.
type TransformStream struct {
	buf  *Buffer
	ctrl *rewrite.Controller
}

// New returns a TransformStream bound to ctrl, whose buffer growth is
// accounted against lim (the same Limiter instance ctrl itself was
// built with — spec §5 "the memory limiter is the only object shared
// by reference among components").
func New(ctrl *rewrite.Controller, lim *limiter.Limiter) *TransformStream {
	return &TransformStream{buf: NewBuffer(lim), ctrl: ctrl}
}

// Write appends p to the input buffer, drives the tokenizer until it
// blocks for lack of input, and flushes whatever output is now safe to
// emit.
func (s *TransformStream) Write(p []byte) error {
	if err := s.buf.Append(p); err != nil {
		return err
	}
	return s.drive(false)
}

// End signals EOF to the tokenizer, drains every remaining lexeme,
// closes any still-open elements implicitly, and flushes the tail.
func (s *TransformStream) End() error {
	if err := s.drive(true); err != nil {
		return err
	}
	return s.ctrl.End()
}

// drive feeds the tokenizer from the buffer's unconsumed tail until it
// can make no further progress (consumed == 0), handing every event to
// the controller and compacting the buffer as bytes are consumed.
func (s *TransformStream) drive(eof bool) error {
	for {
		ev, n, err := s.ctrl.Tok.Next(s.buf.Bytes(), eof)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if ev.Kind != token.NoEvent {
			if err := s.ctrl.HandleEvent(ev); err != nil {
				return err
			}
		}
		s.buf.Consume(n)
	}
	return s.ctrl.Flush()
}
