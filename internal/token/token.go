package token

import (
	"errors"
	"strings"
)

// Mode selects which of the two tokenizer tiers is currently producing
// output: Eager (tag name + boundary only) or Full (complete lexemes with
// decoded attributes). See spec §4.2 "Mode switching".
type Mode uint8

const (
	Full Mode = iota
	Eager
)

func (m Mode) String() string {
	if m == Eager {
		return "eager"
	}
	return "full"
}

// ErrParsingAmbiguity is returned when a requested mode switch cannot be
// honored safely because the tokenizer is mid-way through scanning a
// raw-text element's content: eager mode cannot tell, without the
// attribute decoding that only full mode performs, whether a byte
// sequence that looks like the element's end tag truly is one (it could,
// in full mode, turn out to be quoted content the eager scanner has no
// visibility into). This is fatal and unrecoverable for the rewrite.
var ErrParsingAmbiguity = errors.New("token: parsing ambiguity: mode switch requested mid raw-text element")

// EventKind discriminates the payload of an Event.
type EventKind uint8

const (
	NoEvent EventKind = iota
	LexemeEvent
	TagHintEvent
)

// Event is the result of one Next call: either nothing yet (more input
// needed), a full Lexeme, or a TagHint.
type Event struct {
	Kind   EventKind
	Lexeme Lexeme
	Hint   TagHint
}

// Tokenizer is a streaming, two-tier HTML tokenizer. A single instance
// scans both full lexemes and tag hints; RequestMode selects which one
// Next produces, with the switch taking effect at the next tag boundary.
type Tokenizer struct {
	mode        Mode
	pendingMode Mode
	modePending bool

	strict bool

	// rawText holds the lowercased name of the currently open raw-text or
	// RCDATA element, or "" if text is being scanned in normal Data state.
	rawText string
}

// New returns a Tokenizer starting in Full mode. strict is recorded on
// the Tokenizer but no scanning path reads it: strict and lenient
// tokenizers recover from parse errors identically.
func New(strict bool) *Tokenizer {
	return &Tokenizer{mode: Full, strict: strict}
}

// Mode reports the tokenizer's currently active mode.
func (t *Tokenizer) Mode() Mode {
	return t.mode
}

// RequestMode asks for a mode switch, effective at the next tag boundary
// (spec §4.2). Requesting the already-active mode clears any pending
// switch.
func (t *Tokenizer) RequestMode(m Mode) {
	if m == t.mode {
		t.modePending = false
		return
	}
	t.pendingMode = m
	t.modePending = true
}

func (t *Tokenizer) commitPendingMode() {
	if t.modePending {
		t.mode = t.pendingMode
		t.modePending = false
	}
}

// Next consumes a prefix of data and returns at most one Event. consumed
// reports how many bytes were used; callers must not re-present those
// bytes. consumed == 0 with a NoEvent result and a nil error means more
// input is required before progress can be made (unless eof is true, in
// which case it means tokenization is complete).
func (t *Tokenizer) Next(data []byte, eof bool) (Event, int, error) {
	if len(data) == 0 {
		return Event{}, 0, nil
	}

	if t.rawText != "" {
		return t.scanRawText(data, eof)
	}

	if data[0] != '<' {
		return t.scanText(data, eof)
	}

	if len(data) < 2 {
		if !eof {
			return Event{}, 0, nil
		}
		return textEvent("<"), 1, nil
	}

	switch {
	case data[1] == '!':
		return t.scanMarkupDeclaration(data, eof)
	case data[1] == '/':
		return t.scanEndTag(data, eof)
	case isNameStart(data[1]):
		return t.scanStartTag(data, eof)
	case data[1] == '?':
		// Bogus comment (e.g. an XML processing instruction). Treated as a
		// comment per WHATWG "markup declaration open" fallback.
		return t.scanBogusComment(data, 1, eof)
	default:
		// Not a valid tag-open construct: the '<' is literal text.
		return textEvent("<"), 1, nil
	}
}

func textEvent(s string) Event {
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: TextToken, Text: s, Raw: []byte(s)}}
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (t *Tokenizer) scanText(data []byte, eof bool) (Event, int, error) {
	idx := indexByte(data, '<')
	if idx == -1 {
		if len(data) == 0 {
			return Event{}, 0, nil
		}
		return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: TextToken, Text: string(data), Raw: data}}, len(data), nil
	}
	if idx == 0 {
		return Event{}, 0, nil // shouldn't happen, caller already checked data[0]
	}
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: TextToken, Text: string(data[:idx]), Raw: data[:idx]}}, idx, nil
}

func (t *Tokenizer) scanRawText(data []byte, eof bool) (Event, int, error) {
	end := t.rawText
	idx, boundary := findRawTextEnd(data, end)
	if idx == -1 {
		if eof {
			if len(data) == 0 {
				return Event{}, 0, nil
			}
			return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: TextToken, Text: string(data), Raw: data}}, len(data), nil
		}
		return Event{}, 0, nil
	}
	if t.modePending && t.mode == Eager {
		return Event{}, 0, ErrParsingAmbiguity
	}
	_ = boundary
	if idx == 0 {
		// Sitting right at the matching closing tag: clear raw-text mode
		// and re-dispatch so scanEndTag (not this method again) handles it.
		t.rawText = ""
		return t.Next(data, eof)
	}
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: TextToken, Text: string(data[:idx]), Raw: data[:idx]}}, idx, nil
}

// findRawTextEnd returns the index of the "<" that begins the matching
// "</name" end tag of a raw-text element, or -1 if not present in data.
func findRawTextEnd(data []byte, name string) (int, bool) {
	needle := "</" + name
	lower := strings.ToLower(string(data))
	pos := 0
	for {
		i := strings.Index(lower[pos:], needle)
		if i == -1 {
			return -1, false
		}
		i += pos
		after := i + len(needle)
		if after >= len(lower) || isTagNameBoundary(lower[after]) {
			return i, true
		}
		pos = i + 1
	}
}

func isTagNameBoundary(c byte) bool {
	switch c {
	case '\t', '\n', '\f', ' ', '/', '>':
		return true
	}
	return false
}

func indexByte(data []byte, b byte) int {
	for i, c := range data {
		if c == b {
			return i
		}
	}
	return -1
}

func (t *Tokenizer) scanMarkupDeclaration(data []byte, eof bool) (Event, int, error) {
	rest := data[2:]
	switch {
	case hasPrefixFold(rest, "--"):
		return t.scanComment(data, eof)
	case hasPrefixFold(rest, "doctype"):
		return t.scanDoctype(data, eof)
	case hasPrefixFold(rest, "[cdata["):
		return t.scanCData(data, eof)
	default:
		return t.scanBogusComment(data, 2, eof)
	}
}

func hasPrefixFold(b []byte, prefix string) bool {
	if len(b) < len(prefix) {
		return false
	}
	return strings.EqualFold(string(b[:len(prefix)]), prefix)
}

func (t *Tokenizer) scanComment(data []byte, eof bool) (Event, int, error) {
	start := 4 // len("<!--")
	idx := indexString(data[start:], "-->")
	if idx == -1 {
		if eof {
			text := string(data[start:])
			return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: CommentToken, Text: text, Raw: data}}, len(data), nil
		}
		return Event{}, 0, nil
	}
	end := start + idx
	consumed := end + 3
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: CommentToken, Text: string(data[start:end]), Raw: data[:consumed]}}, consumed, nil
}

// scanBogusComment handles "<!...>" and "<?...>" constructs that are not
// recognized comments, doctypes, or CDATA sections: their content up to
// the next ">" is reported as a comment, per WHATWG's bogus-comment state.
func (t *Tokenizer) scanBogusComment(data []byte, contentStart int, eof bool) (Event, int, error) {
	idx := indexByte(data[contentStart:], '>')
	if idx == -1 {
		if eof {
			return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: CommentToken, Text: string(data[contentStart:]), Raw: data}}, len(data), nil
		}
		return Event{}, 0, nil
	}
	end := contentStart + idx
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: CommentToken, Text: string(data[contentStart:end]), Raw: data[:end+1]}}, end + 1, nil
}

func (t *Tokenizer) scanDoctype(data []byte, eof bool) (Event, int, error) {
	idx := indexByte(data, '>')
	if idx == -1 {
		if eof {
			d := parseDoctype(strings.TrimLeft(string(data[9:]), whitespace))
			d.ForceQuirks = true
			return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: DoctypeToken, Doctype: d, Raw: data}}, len(data), nil
		}
		return Event{}, 0, nil
	}
	body := strings.TrimLeft(string(data[9:idx]), whitespace) // after "<!doctype", whitespace-trimmed
	d := parseDoctype(body)
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: DoctypeToken, Doctype: d, Raw: data[:idx+1]}}, idx + 1, nil
}

func (t *Tokenizer) scanCData(data []byte, eof bool) (Event, int, error) {
	start := 9 // len("<![CDATA[")
	idx := indexString(data[start:], "]]>")
	if idx == -1 {
		if eof {
			return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: CDataToken, Text: string(data[start:]), Raw: data}}, len(data), nil
		}
		return Event{}, 0, nil
	}
	end := start + idx
	consumed := end + 3
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: CDataToken, Text: string(data[start:end]), Raw: data[:consumed]}}, consumed, nil
}

func indexString(data []byte, sub string) int {
	s := string(data)
	return strings.Index(s, sub)
}

func (t *Tokenizer) scanEndTag(data []byte, eof bool) (Event, int, error) {
	idx := indexByte(data, '>')
	if idx == -1 {
		if eof {
			return textEvent(string(data)), len(data), nil
		}
		return Event{}, 0, nil
	}
	name := strings.TrimSpace(string(data[2:idx]))
	// Drop any stray attribute-like content end tags are not supposed to
	// carry; keep just the leading name token.
	if sp := strings.IndexAny(name, whitespace); sp != -1 {
		name = name[:sp]
	}
	t.commitPendingMode()
	if t.mode == Eager {
		return Event{Kind: TagHintEvent, Hint: TagHint{Kind: EndTagToken, Name: name, Raw: append([]byte(nil), data[:idx+1]...)}}, idx + 1, nil
	}
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: EndTagToken, Name: name, Raw: data[:idx+1]}}, idx + 1, nil
}

func (t *Tokenizer) scanStartTag(data []byte, eof bool) (Event, int, error) {
	i := 1
	nameStart := i
	for i < len(data) && isNameChar(data[i]) {
		i++
	}
	if i >= len(data) {
		if eof {
			return textEvent(string(data)), len(data), nil
		}
		return Event{}, 0, nil
	}
	name := string(data[nameStart:i])

	var attrs []Attr
	selfClosing := false

	for {
		for i < len(data) && isWhitespace(data[i]) {
			i++
		}
		if i >= len(data) {
			if eof {
				return textEvent(string(data)), len(data), nil
			}
			return Event{}, 0, nil
		}
		if data[i] == '>' {
			i++
			break
		}
		if data[i] == '/' {
			if i+1 < len(data) && data[i+1] == '>' {
				selfClosing = true
				i += 2
				break
			}
			if i+1 >= len(data) && !eof {
				return Event{}, 0, nil
			}
			i++
			continue
		}

		attrNameStart := i
		for i < len(data) && !isWhitespace(data[i]) && data[i] != '=' && data[i] != '>' && data[i] != '/' {
			i++
		}
		if i >= len(data) {
			if eof {
				return textEvent(string(data)), len(data), nil
			}
			return Event{}, 0, nil
		}
		attrName := string(data[attrNameStart:i])

		for i < len(data) && isWhitespace(data[i]) {
			i++
		}
		if i >= len(data) {
			if eof {
				return textEvent(string(data)), len(data), nil
			}
			return Event{}, 0, nil
		}

		var attrVal string
		hasVal := false
		if data[i] == '=' {
			i++
			for i < len(data) && isWhitespace(data[i]) {
				i++
			}
			if i >= len(data) {
				if eof {
					return textEvent(string(data)), len(data), nil
				}
				return Event{}, 0, nil
			}
			switch data[i] {
			case '"', '\'':
				quote := data[i]
				i++
				valStart := i
				for i < len(data) && data[i] != quote {
					i++
				}
				if i >= len(data) {
					if eof {
						return textEvent(string(data)), len(data), nil
					}
					return Event{}, 0, nil
				}
				attrVal = string(data[valStart:i])
				i++
				hasVal = true
			default:
				valStart := i
				for i < len(data) && !isWhitespace(data[i]) && data[i] != '>' {
					i++
				}
				if i >= len(data) {
					if eof {
						return textEvent(string(data)), len(data), nil
					}
					return Event{}, 0, nil
				}
				attrVal = string(data[valStart:i])
				hasVal = true
			}
		}
		_ = hasVal

		if !hasDuplicateAttr(attrs, attrName) {
			attrs = append(attrs, Attr{Name: attrName, Val: attrVal})
		}
	}

	t.commitPendingMode()

	if !selfClosing && isRawTextElement(name) {
		t.rawText = asciiLower(name)
	}

	consumed := i
	if t.mode == Eager {
		return Event{Kind: TagHintEvent, Hint: TagHint{Kind: StartTagToken, Name: name, SelfClosing: selfClosing, Raw: append([]byte(nil), data[:consumed]...)}}, consumed, nil
	}
	return Event{Kind: LexemeEvent, Lexeme: Lexeme{Kind: StartTagToken, Name: name, Attrs: attrs, SelfClosing: selfClosing, Raw: data[:consumed]}}, consumed, nil
}

func hasDuplicateAttr(attrs []Attr, name string) bool {
	for _, a := range attrs {
		if eqFold(a.Name, name) {
			return true
		}
	}
	return false
}

func isNameChar(c byte) bool {
	return !isWhitespace(c) && c != '>' && c != '/' && c != '='
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}
