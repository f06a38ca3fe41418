// Package stream implements the TransformStream/Serializer (spec §4.6):
// it owns the input buffer, drives the tokenizer chunk by chunk, and
// hands resulting events to the RewriteController.
package stream

import "github.com/streamrewrite/htmlrewriter/internal/limiter"

// Buffer is the growable region holding the unconsumed tail of the
// input (spec §3 "Byte buffer"). Growth is accounted through a shared
// Limiter; Consume compacts the head in place once the tokenizer
// reports bytes it no longer needs.
//
// Unlike spec.md's borrow-by-slice Lexeme model, internal/token's
// Lexeme/TagHint copy their strings out of data at scan time (see
// DESIGN.md) rather than aliasing this buffer, so Consume is free to
// compact immediately after every Next call instead of waiting for a
// generation check.
type Buffer struct {
	data []byte
	lim  *limiter.Limiter
}

// NewBuffer returns an empty Buffer whose growth is tracked by lim.
func NewBuffer(lim *limiter.Limiter) *Buffer {
	return &Buffer{lim: lim}
}

// Append accounts for and appends p to the buffer's unconsumed tail.
func (b *Buffer) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := b.lim.Increase(uint64(len(p))); err != nil {
		return err
	}
	b.data = append(b.data, p...)
	return nil
}

// Bytes returns the buffer's current unconsumed tail.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len reports the number of unconsumed bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Consume releases the first n bytes: they are no longer reachable
// through Bytes, and their accounting is returned to the limiter.
func (b *Buffer) Consume(n int) {
	if n == 0 {
		return
	}
	b.lim.Decrease(uint64(n))
	b.data = append(b.data[:0], b.data[n:]...)
}
