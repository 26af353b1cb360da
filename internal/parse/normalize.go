package parse

import "strings"

// nbspReplacer maps the no-break space variants that CPAM statements use as
// thousands separators onto plain spaces so the patterns match reliably.
var nbspReplacer = strings.NewReplacer(
	" ", " ", // no-break space
	" ", " ", // narrow no-break space
)

// Normalize replaces locale-specific space characters with ordinary spaces.
// Case, accents and punctuation are preserved.
func Normalize(text string) string {
	return nbspReplacer.Replace(text)
}

// NormalizeLines normalizes the text and splits it into trimmed, non-empty
// lines for the line-oriented extractors.
func NormalizeLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(Normalize(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
