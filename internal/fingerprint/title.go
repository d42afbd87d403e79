package fingerprint

import (
	"strings"

	"golang.org/x/net/html"
)

// extractTitle walks body as HTML and returns the text content of the first
// <title> element, or "" if none is found or the markup is malformed. Using
// a tokenizer instead of a regex avoids building a pattern that must span an
// attacker-controlled document with a greedy .*.
func extractTitle(body string) string {
	if body == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(body))
	inTitle := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				return ""
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(z.Text()))
			}
		}
	}
}
