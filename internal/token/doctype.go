package token

import "strings"

// whitespace is the set of characters the WHATWG tokenizer treats as
// "ASCII whitespace" while scanning a DOCTYPE token's body.
const whitespace = " \t\n\f\r"

// parseDoctype parses the raw bytes between "<!DOCTYPE" and the closing
// ">" into a Doctype, following the same algorithm the teacher's
// chtml/html/doctype.go uses to carve a name, public id and system id out
// of a DoctypeToken's data.
func parseDoctype(s string) Doctype {
	var d Doctype

	space := strings.IndexAny(s, whitespace)
	if space == -1 {
		space = len(s)
	}
	d.Name = strings.ToLower(s[:space])
	s = strings.TrimLeft(s[space:], whitespace)

	if len(s) < 6 {
		return d
	}

	key := strings.ToLower(s[:6])
	s = s[6:]
	for key == "public" || key == "system" {
		s = strings.TrimLeft(s, whitespace)
		if s == "" {
			break
		}
		quote := s[0]
		if quote != '"' && quote != '\'' {
			break
		}
		s = s[1:]
		q := strings.IndexRune(s, rune(quote))
		var id string
		if q == -1 {
			id = s
			s = ""
		} else {
			id = s[:q]
			s = s[q+1:]
		}
		if key == "public" {
			d.PublicID = id
			d.HasPublicID = true
			key = "system"
		} else {
			d.SystemID = id
			d.HasSystemID = true
			key = ""
		}
	}

	return d
}
