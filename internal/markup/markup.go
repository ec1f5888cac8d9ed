// Package markup parses the inline emphasis used in report text: **bold** and *italic*.
package markup

import (
	"regexp"
	"strings"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*.*?\*\*`)
	italicPattern = regexp.MustCompile(`\*.*?\*`)
)

// Run is a contiguous span of text sharing one style.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Parse splits text into styled runs. Bold tokens are found first and consumed whole;
// italic tokens are only looked for in the text between them. Delimiters that do not
// form a complete token are kept as plain text. Empty runs are dropped.
func Parse(text string) []Run {
	var runs []Run
	last := 0
	for _, loc := range boldPattern.FindAllStringIndex(text, -1) {
		runs = appendItalic(runs, text[last:loc[0]])
		runs = appendRun(runs, Run{Text: text[loc[0]+2 : loc[1]-2], Bold: true})
		last = loc[1]
	}
	return appendItalic(runs, text[last:])
}

func appendItalic(runs []Run, segment string) []Run {
	last := 0
	for _, loc := range italicPattern.FindAllStringIndex(segment, -1) {
		token := segment[loc[0]:loc[1]]
		if strings.HasPrefix(token, "**") {
			// a lone "**" left over after bold matching stays literal
			continue
		}
		runs = appendRun(runs, Run{Text: segment[last:loc[0]]})
		runs = appendRun(runs, Run{Text: token[1 : len(token)-1], Italic: true})
		last = loc[1]
	}
	return appendRun(runs, Run{Text: segment[last:]})
}

func appendRun(runs []Run, r Run) []Run {
	if r.Text == "" {
		return runs
	}
	return append(runs, r)
}

// PlainText concatenates the text of runs without delimiters.
func PlainText(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
