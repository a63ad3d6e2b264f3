// Package extract turns stored source items into raw text.
package extract

import (
	"regexp"
	"strings"
)

// markupTag matches simple inline tags such as <scp> or </i> that PDF
// exports and publisher feeds leave in the text.
var markupTag = regexp.MustCompile(`</?[a-zA-Z]+>`)

// CleanText strips inline markup and surrounding whitespace.
func CleanText(text string) string {
	return strings.TrimSpace(markupTag.ReplaceAllString(text, ""))
}
