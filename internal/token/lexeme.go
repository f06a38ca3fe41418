// Package token implements the two-tier HTML tokenizer: a full, lexeme
// producing state machine and a lightweight eager scanner that only
// reports tag boundaries. Both operate directly over the tail of the
// caller-owned input buffer so that no lexeme ever outlives the bytes it
// borrows (see internal/stream for the buffer and compaction discipline).
package token

import "html"

// Kind identifies the variant carried by a Lexeme.
type Kind uint8

const (
	StartTagToken Kind = iota
	EndTagToken
	DoctypeToken
	CommentToken
	TextToken
	CDataToken
)

func (k Kind) String() string {
	switch k {
	case StartTagToken:
		return "StartTag"
	case EndTagToken:
		return "EndTag"
	case DoctypeToken:
		return "Doctype"
	case CommentToken:
		return "Comment"
	case TextToken:
		return "Text"
	case CDataToken:
		return "CData"
	default:
		return "Unknown"
	}
}

// Attr is a single attribute of a StartTagToken lexeme. Val is the raw,
// not-yet-entity-decoded attribute value as it appeared in the source;
// Decoded lazily expands character references the first time it is asked
// for, per spec's "lazy character-reference expansion" rule.
type Attr struct {
	Name string
	Val  string

	decoded    string
	decodedSet bool
}

// Decoded returns the entity-expanded attribute value, computing and
// caching it on first use.
func (a *Attr) Decoded() string {
	if !a.decodedSet {
		a.decoded = html.UnescapeString(a.Val)
		a.decodedSet = true
	}
	return a.decoded
}

// Doctype carries the parsed pieces of a DoctypeToken, per the WHATWG
// "parse a DOCTYPE token" algorithm referenced in the teacher's
// chtml/html/doctype.go.
type Doctype struct {
	Name        string
	PublicID    string
	HasPublicID bool
	SystemID    string
	HasSystemID bool
	ForceQuirks bool
}

// Lexeme is one unit of output from full-mode tokenization. Its Raw field
// is a slice into the live input buffer: it must not be retained past the
// call that produced it (spec §3, "Lexeme lifetime vs buffer compaction").
type Lexeme struct {
	Kind Kind

	// Name is the tag name (Start/EndTagToken) or, for CommentToken/TextToken/
	// CDataToken, unused (content lives in Text).
	Name string

	Attrs       []Attr
	SelfClosing bool

	Doctype Doctype

	// Text holds literal content for CommentToken, TextToken and CDataToken.
	Text string

	// Raw is the exact source bytes this lexeme was built from.
	Raw []byte
}

// Get returns the first attribute by name and whether it was present.
// Matching is ASCII case-insensitive, per HTML attribute name rules.
func (l *Lexeme) Get(name string) (*Attr, bool) {
	for i := range l.Attrs {
		if eqFold(l.Attrs[i].Name, name) {
			return &l.Attrs[i], true
		}
	}
	return nil, false
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// TagHint is the minimal cousin of a Lexeme produced by eager mode: tag
// name and kind only, no attribute decoding. Raw is a copy of the tag's
// source bytes, not a slice of the input buffer, so it stays valid after
// the buffer compacts.
type TagHint struct {
	Kind        Kind // StartTagToken or EndTagToken
	Name        string
	SelfClosing bool
	Raw         []byte
}
