package chat

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Sanitize strips every tag from s and returns the visible text. Content
// inside script and style elements is dropped; the tokenizer decodes entities.
func Sanitize(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return normalize(b.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) {
				skipDepth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// normalize drops control characters and collapses runs of whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
