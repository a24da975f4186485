// Package render turns a parsed schedule into the HTML page served at "/".
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"fechas/internal/model"
	"fechas/internal/schedule"
	"fechas/internal/theme"
)

//go:embed templates/page.html.tmpl
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/page.html.tmpl"))

// Page is the data handed to the page template.
type Page struct {
	Theme    string
	Themes   []string
	Sections []SectionView

	// Source is the loaded text shown in the editor.
	Source string
}

// SectionView is a section plus its derived dominant category.
type SectionView struct {
	Name     string
	General  string
	Virtual  string
	Dominant string
	Events   []EventView
}

// EventView is one list item.
type EventView struct {
	Text  string
	Class string
}

// NewPage projects doc into template data. A nil doc renders an empty page.
func NewPage(doc *model.Document, activeTheme string) Page {
	p := Page{
		Theme:  theme.Normalize(activeTheme),
		Themes: theme.Allowed,
	}
	if doc == nil {
		return p
	}
	for _, s := range doc.Sections {
		sv := SectionView{
			Name:     s.Name,
			General:  s.Links["General"],
			Virtual:  s.Links["Virtual"],
			Dominant: schedule.DominantCategory(s.Events).Class(),
		}
		for _, ev := range s.Events {
			sv.Events = append(sv.Events, EventView{Text: ev.Text, Class: ev.Category.Class()})
		}
		p.Sections = append(p.Sections, sv)
	}
	return p
}

// HTML writes the full page for doc using activeTheme, with an empty editor.
func HTML(w io.Writer, doc *model.Document, activeTheme string) error {
	return Execute(w, NewPage(doc, activeTheme))
}

// Execute writes the full page for p.
func Execute(w io.Writer, p Page) error {
	if err := pageTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render: execute page: %w", err)
	}
	return nil
}
