package schedule

import (
	"strings"

	"fechas/internal/model"
)

// ClassifyEvent derives the category of an event line from keywords.
//
// Exam keywords are checked after delivery keywords and win when both are
// present, so "TP final entregado" is an exam.
func ClassifyEvent(text string) model.Category {
	lower := strings.ToLower(text)
	cat := model.CategoryNone

	if containsAny(lower, "tp", "trabajo") {
		cat = model.CategoryTP
		if containsAny(lower, "entregado", "finalizado") {
			cat = model.CategoryTPEntregado
		}
	}
	if containsAny(lower, "parcial", "final", "examen") {
		cat = model.CategoryExamen
		if strings.Contains(lower, "listo") {
			cat = model.CategoryExamenListo
		}
	}
	return cat
}

// dominantOrder is the priority used to pick a section's dominant category.
var dominantOrder = []model.Category{
	model.CategoryTPEntregado,
	model.CategoryTP,
	model.CategoryExamenListo,
	model.CategoryExamen,
}

// DominantCategory returns the highest-priority category present in events,
// or model.CategoryNone.
func DominantCategory(events []model.Event) model.Category {
	for _, c := range dominantOrder {
		for _, ev := range events {
			if ev.Category == c {
				return c
			}
		}
	}
	return model.CategoryNone
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
