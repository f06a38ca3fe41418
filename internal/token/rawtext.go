package token

// rawTextElements never interpret markup in their content; only the
// matching end tag terminates them. RCDATA elements do the same but also
// expand character references in their text; the tokenizer treats both
// identically and reports their text as written, with no reference
// expansion.
var rawTextElements = map[string]bool{
	"script":   true,
	"style":    true,
	"textarea": true,
	"title":    true,
	"iframe":   true,
	"noscript": true,
	"noembed":  true,
	"noframes": true,
	"plaintext": true,
	"xmp":      true,
}

func isRawTextElement(name string) bool {
	return rawTextElements[asciiLower(name)]
}

func asciiLower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
