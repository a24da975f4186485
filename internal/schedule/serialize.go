package schedule

import (
	"regexp"
	"strings"

	"rsc.io/edit"

	"fechas/internal/theme"
)

var temaLineRE = regexp.MustCompile(`(?im)^[ \t]*tema[ \t]*=.*$`)

// Serialize writes theme into the [Config] block of text and returns the
// result. It works on the raw text so lines the parser does not understand
// survive untouched.
//
//   - Every line starting with "Tema =" (any case, any indentation, anywhere) becomes
//     "Tema = <theme>".
//   - With a [Config] header but no Tema line, the Tema line is inserted
//     right after the header.
//   - Without a header, a [Config] block is prepended.
//
// Line endings are normalized to "\n". Serialize is idempotent for a given
// theme.
func Serialize(text, themeName string) string {
	themeName = theme.Normalize(themeName)
	text = normalizeNewlines(text)
	temaLine := "Tema = " + themeName

	buf := edit.NewBuffer([]byte(text))
	matches := temaLineRE.FindAllStringIndex(text, -1)
	for _, m := range matches {
		buf.Replace(m[0], m[1], temaLine)
	}

	end, ok := configHeaderEnd(text)
	switch {
	case !ok:
		buf.Insert(0, "[Config]\n"+temaLine+"\n\n")
	case len(matches) == 0:
		buf.Insert(end, "\n"+temaLine)
	}
	return buf.String()
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// configHeaderEnd returns the offset of the end of the first [Config] header
// line (the position of its newline, or len(text) on the last line).
func configHeaderEnd(text string) (int, bool) {
	start := 0
	for start <= len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}
		if isConfigHeader(strings.TrimSpace(text[start:end])) {
			return end, true
		}
		start = end + 1
	}
	return 0, false
}
