// Package theme owns the visual theme tokens and the process-wide active theme.
package theme

import (
	"strings"
	"sync"

	appLog "fechas/internal/log"
)

// Default is used whenever a token is missing or not in the allow-set.
const Default = "monokai"

// Allowed lists the accepted theme tokens in selector order.
var Allowed = []string{"light", "dark", "neon", "grayscale", "monokai"}

// Valid reports whether s is an allowed token. The comparison is exact;
// callers lower-case first.
func Valid(s string) bool {
	for _, a := range Allowed {
		if s == a {
			return true
		}
	}
	return false
}

// Normalize lower-cases s and falls back to Default when it is not allowed.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !Valid(s) {
		return Default
	}
	return s
}

// Active holds the currently applied theme. It is safe for concurrent use.
type Active struct {
	mu      sync.RWMutex
	current string
}

// NewActive returns an Active starting at the normalized initial theme.
func NewActive(initial string) *Active {
	return &Active{current: Normalize(initial)}
}

// ActiveTheme returns the current theme token.
func (a *Active) ActiveTheme() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// SwitchTheme normalizes t and makes it the active theme.
func (a *Active) SwitchTheme(t string) {
	t = Normalize(t)

	a.mu.Lock()
	prev := a.current
	a.current = t
	a.mu.Unlock()

	if prev != t {
		appLog.Info("theme switched", "from", prev, "to", t)
	}
}
