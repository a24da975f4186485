// Package schedule parses the plain-text schedule format into a
// model.Document, classifies its events, and writes theme changes back into
// raw text.
//
// The format is line oriented:
//
//	[Config]
//	Tema = dark
//
//	[Redes]
//	General = https://campus.example/redes
//	Parcial el 10/11
//
// Parsing is total: every input yields a document and nothing is reported as
// an error.
package schedule

import (
	"strings"

	appLog "fechas/internal/log"
	"fechas/internal/model"
	"fechas/internal/theme"
)

// ThemeSwitcher is the environment that owns the active theme. The parser
// asks it to switch when a [Config] block names a different theme.
type ThemeSwitcher interface {
	ActiveTheme() string
	SwitchTheme(theme string)
}

// Parser builds documents. The zero value parses without notifying anyone
// about theme changes.
type Parser struct {
	Themes ThemeSwitcher
}

// Parse builds a document from text without a theme switcher.
func Parse(text string) *model.Document {
	return Parser{}.Parse(text)
}

// builderState is what the fold carries from one line to the next.
type builderState struct {
	section  *model.Section
	inConfig bool
}

// Parse builds a document from text.
func (p Parser) Parse(text string) *model.Document {
	doc := model.NewDocument()

	var st builderState
	for _, raw := range strings.Split(text, "\n") {
		line := ClassifyLine(strings.TrimSpace(raw), st.inConfig)
		st = p.apply(doc, st, line)
	}

	appLog.Debug("schedule parsed", "sections", len(doc.Sections), "has_config", doc.Config != nil)
	return doc
}

func (p Parser) apply(doc *model.Document, st builderState, line Line) builderState {
	switch line.Kind {
	case LineConfigHeader:
		doc.EnsureConfig()
		return builderState{inConfig: true}

	case LineSectionHeader:
		// "[]" closes the current block without opening a section.
		if line.Name == "" {
			return builderState{}
		}
		return builderState{section: doc.ResetSection(line.Name)}

	case LineConfigPair:
		if st.inConfig && strings.EqualFold(line.Key, "tema") {
			p.setTheme(doc, line.Value)
		}

	case LineLinkPair:
		if st.section != nil && !st.inConfig {
			st.section.Links[line.Key] = line.Value
		}

	case LineEvent:
		if st.section != nil && !st.inConfig {
			st.section.Events = append(st.section.Events, model.Event{
				Text:     line.Text,
				Category: ClassifyEvent(line.Text),
			})
		}
	}
	return st
}

func (p Parser) setTheme(doc *model.Document, value string) {
	t := theme.Normalize(value)
	doc.EnsureConfig().Tema = t

	if p.Themes == nil {
		return
	}
	if t != p.Themes.ActiveTheme() {
		p.Themes.SwitchTheme(t)
	}
}

// Theme returns the theme named by the document, or theme.Default.
func Theme(doc *model.Document) string {
	if doc == nil || doc.Config == nil || doc.Config.Tema == "" {
		return theme.Default
	}
	return doc.Config.Tema
}
