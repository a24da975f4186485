package model

import "strings"

// Category is the derived styling tag of an event.
type Category string

const (
	CategoryNone        Category = "none"
	CategoryTP          Category = "tp"
	CategoryTPEntregado Category = "tp-entregado"
	CategoryExamen      Category = "examen"
	CategoryExamenListo Category = "examen-listo"
)

// Class returns the CSS class used for the category. CategoryNone (and the
// zero value) have no class.
func (c Category) Class() string {
	if c == CategoryNone {
		return ""
	}
	return string(c)
}

// Event is one free-text line of a subject section, typically a date or a
// task description.
type Event struct {
	// Text is the original trimmed line, kept verbatim for display.
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// Section is a named subject block holding links and events.
type Section struct {
	Name string `json:"name"`

	// Links maps a label (e.g. "General", "Virtual") to a URL. Any label is
	// accepted; the renderer only surfaces General and Virtual.
	Links map[string]string `json:"links"`

	// Events in source order. Duplicates are kept.
	Events []Event `json:"events"`
}

// NewSection returns an empty section named name.
func NewSection(name string) *Section {
	return &Section{
		Name:   name,
		Links:  make(map[string]string),
		Events: []Event{},
	}
}

// Config holds the global settings from the [Config] block.
type Config struct {
	Tema string `json:"tema,omitempty"`
}

// Document is the parsed form of a schedule text.
type Document struct {
	// Config is nil when the text has no [Config] block.
	Config *Config `json:"config,omitempty"`

	// Sections in order of first appearance.
	Sections []*Section `json:"sections"`

	index map[string]int
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Sections: []*Section{},
		index:    make(map[string]int),
	}
}

// Section returns the section called name, or nil.
func (d *Document) Section(name string) *Section {
	if d == nil || d.index == nil {
		return nil
	}
	i, ok := d.index[name]
	if !ok {
		return nil
	}
	return d.Sections[i]
}

// ResetSection installs a fresh empty section for name and returns it.
// A name seen before keeps its original position; its content is dropped.
func (d *Document) ResetSection(name string) *Section {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	s := NewSection(name)
	if i, ok := d.index[name]; ok {
		d.Sections[i] = s
		return s
	}
	d.index[name] = len(d.Sections)
	d.Sections = append(d.Sections, s)
	return s
}

// EnsureConfig returns the document config, creating it if needed.
func (d *Document) EnsureConfig() *Config {
	if d.Config == nil {
		d.Config = &Config{}
	}
	return d.Config
}

// Names returns the section names in order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		names = append(names, s.Name)
	}
	return names
}

// IsReservedName reports whether name is the reserved Config section name.
func IsReservedName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "config")
}
