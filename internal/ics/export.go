package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "fechas/internal/log"
	"fechas/internal/model"
)

const productID = "-//fechas//schedule export//ES"

// ExportOptions controls how dated events become calendar entries.
type ExportOptions struct {
	// Location of the all-day dates. If nil, time.Local is used.
	Location *time.Location

	// Year is used for dates written without one ("10/11"). If zero, the
	// year of Now is used.
	Year int

	// Now stamps DTSTAMP. If zero, time.Now() is used.
	Now time.Time
}

// dateRE matches d/m and d/m/y, with "/" or "-" separators.
var dateRE = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{4}|\d{2}))?\b`)

// ExtractDate finds the first day/month date in text. Two-digit years are
// taken as 20xx. Impossible dates such as 31/02 are skipped.
func ExtractDate(text string, year int, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, m := range dateRE.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		y := year
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				y += 2000
			}
		}
		if month < 1 || month > 12 || day < 1 {
			continue
		}
		t := time.Date(y, time.Month(month), day, 0, 0, 0, 0, loc)
		// time.Date normalizes overflow; reject anything that moved.
		if t.Day() != day || int(t.Month()) != month {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// Build turns every dated event of doc into an all-day VEVENT. Events with no
// recognizable date are skipped.
func Build(doc *model.Document, opts ExportOptions) *ical.Calendar {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Year == 0 {
		opts.Year = opts.Now.In(opts.Location).Year()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	exported, skipped := 0, 0
	for _, sec := range doc.Sections {
		for i, ev := range sec.Events {
			day, ok := ExtractDate(ev.Text, opts.Year, opts.Location)
			if !ok {
				skipped++
				continue
			}

			vev := cal.AddEvent(eventUID(sec.Name, i, ev.Text))
			vev.SetDtStampTime(opts.Now.UTC())
			vev.SetAllDayStartAt(day)
			vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			vev.SetSummary(sec.Name + ": " + ev.Text)
			if c := ev.Category.Class(); c != "" {
				vev.AddProperty(ical.ComponentPropertyCategories, c)
			}
			if link, ok := sec.Links["General"]; ok {
				vev.SetURL(link)
			}
			exported++
		}
	}

	appLog.Info("ics export built", "events", exported, "undated", skipped, "year", opts.Year)
	return cal
}

// Export serializes Build(doc, opts) to iCalendar text.
func Export(doc *model.Document, opts ExportOptions) string {
	return Build(doc, opts).Serialize()
}

// eventUID is stable across exports as long as the section, position and
// text of the event do not change.
func eventUID(section string, index int, text string) string {
	sum := sha256.Sum256([]byte(section + "\x00" + strconv.Itoa(index) + "\x00" + text))
	return hex.EncodeToString(sum[:8]) + "@fechas"
}
