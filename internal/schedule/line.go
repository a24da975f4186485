package schedule

import (
	"regexp"
	"strings"

	"fechas/internal/model"
)

// LineKind is the syntactic category of one schedule line.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineComment
	LineConfigHeader
	LineSectionHeader
	LineConfigPair
	LineLinkPair
	LineEvent
)

func (k LineKind) String() string {
	switch k {
	case LineEmpty:
		return "empty"
	case LineComment:
		return "comment"
	case LineConfigHeader:
		return "config-header"
	case LineSectionHeader:
		return "section-header"
	case LineConfigPair:
		return "config-pair"
	case LineLinkPair:
		return "link-pair"
	case LineEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Line is a classified line. Which payload fields are set depends on Kind:
//
//   - LineSectionHeader: Name
//   - LineConfigPair, LineLinkPair: Key, Value
//   - LineEvent: Text
type Line struct {
	Kind  LineKind
	Name  string
	Key   string
	Value string
	Text  string
}

var (
	ruleRE       = regexp.MustCompile(`^-+$`)
	headerRE     = regexp.MustCompile(`^\[.*\]$`)
	configPairRE = regexp.MustCompile(`^(\w+)\s*=\s*(\w+)`)
	linkPairRE   = regexp.MustCompile(`(?i)^(\w+)\s*=\s*(https?://\S+)`)
)

const configHeaderPrefix = "[config]"

// ClassifyLine assigns a single already-trimmed line to its category.
// inConfig reports whether the previous header was [Config]; config pairs
// are only recognized there.
func ClassifyLine(line string, inConfig bool) Line {
	switch {
	case line == "":
		return Line{Kind: LineEmpty}
	case strings.HasPrefix(line, "#") || ruleRE.MatchString(line):
		return Line{Kind: LineComment, Text: line}
	case isConfigHeader(line):
		return Line{Kind: LineConfigHeader}
	case headerRE.MatchString(line):
		return Line{Kind: LineSectionHeader, Name: headerName(line)}
	}

	if inConfig {
		if m := configPairRE.FindStringSubmatch(line); m != nil {
			return Line{Kind: LineConfigPair, Key: m[1], Value: m[2]}
		}
	}
	if m := linkPairRE.FindStringSubmatch(line); m != nil {
		return Line{Kind: LineLinkPair, Key: m[1], Value: m[2]}
	}
	return Line{Kind: LineEvent, Text: line}
}

// isConfigHeader matches "[Config]" at the start of a trimmed line, and any
// fully bracketed line whose name trims to "config".
func isConfigHeader(line string) bool {
	if len(line) >= len(configHeaderPrefix) && strings.EqualFold(line[:len(configHeaderPrefix)], configHeaderPrefix) {
		return true
	}
	return headerRE.MatchString(line) && model.IsReservedName(headerName(line))
}

func headerName(line string) string {
	name := strings.TrimPrefix(line, "[")
	name = strings.TrimSuffix(name, "]")
	return strings.TrimSpace(name)
}
