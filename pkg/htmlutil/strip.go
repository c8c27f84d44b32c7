package htmlutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var multipleSpacesPattern = regexp.MustCompile(`[ \t\f\v\x{00A0}]{2,}`)

// blockEnds end a line when they close.
var blockEnds = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Li:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Blockquote: true,
	atom.Tr:         true,
}

// StripTags converts an HTML fragment, possibly entity-escaped, into plain
// text. Line breaks and block ends become newlines, list items become "- "
// bullets, script and style bodies are dropped, and so are empty lines.
func StripTags(s string) string {
	if s == "" {
		return ""
	}

	// Provider payloads often carry escaped markup, so unescape before
	// tokenizing. Text tokens are unescaped once more by the tokenizer, which
	// takes care of double escaped entities.
	z := html.NewTokenizer(strings.NewReader(html.UnescapeString(s)))

	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Br:
				b.WriteByte('\n')
			case atom.Li:
				b.WriteString("- ")
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			if blockEnds[a] {
				b.WriteByte('\n')
			}
		}
	}

	lines := strings.Split(strings.ReplaceAll(b.String(), "\u00a0", " "), "\n")
	nonEmpty := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(multipleSpacesPattern.ReplaceAllString(line, " "))
		if line != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}

	return strings.Join(nonEmpty, "\n")
}
