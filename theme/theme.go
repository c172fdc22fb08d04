// Package theme holds the light and dark palettes and the persisted theme
// mode preference.
package theme

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"todo-app/model"
	"todo-app/store"
)

// Mode selects a palette.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// DefaultMode is used when no preference has been saved.
const DefaultMode = Dark

// ParseMode accepts "light" or "dark" in any case.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	default:
		return "", false
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

// Palette is the set of colors the UI draws with.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Text      lipgloss.Color
	TextLight lipgloss.Color
	Border    lipgloss.Color
	Error     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color
	High      lipgloss.Color
	Medium    lipgloss.Color
	Low       lipgloss.Color
	Completed lipgloss.Color
	Icon      lipgloss.Color
}

var lightPalette = Palette{
	Primary:   "#007AFF",
	Secondary: "#5856D6",
	Text:      "#1C1C1E",
	TextLight: "#8A8A8E",
	Border:    "#E5E5EA",
	Error:     "#FF3B30",
	Success:   "#34C759",
	Warning:   "#FFCC00",
	Info:      "#5AC8FA",
	High:      "#FF3B30",
	Medium:    "#FF9500",
	Low:       "#34C759",
	Completed: "#A3AED0",
	Icon:      "#637381",
}

var darkPalette = Palette{
	Primary:   "#0A84FF",
	Secondary: "#BF5AF2",
	Text:      "#FFFFFF",
	TextLight: "#8E8E93",
	Border:    "#2C2C2E",
	Error:     "#FF453A",
	Success:   "#30D158",
	Warning:   "#FFD60A",
	Info:      "#64D2FF",
	High:      "#FF453A",
	Medium:    "#FF9F0A",
	Low:       "#30D158",
	Completed: "#6B7280",
	Icon:      "#9CA3AF",
}

// PaletteFor returns the palette of m. Unknown modes get the default.
func PaletteFor(m Mode) Palette {
	switch m {
	case Light:
		return lightPalette
	case Dark:
		return darkPalette
	default:
		return PaletteFor(DefaultMode)
	}
}

// PriorityColor maps a priority to its accent color.
func (p Palette) PriorityColor(pr model.Priority) lipgloss.Color {
	switch pr {
	case model.PriorityHigh:
		return p.High
	case model.PriorityLow:
		return p.Low
	default:
		return p.Medium
	}
}

// Load returns the saved mode, or fallback when nothing valid is stored. A
// gateway error is returned together with fallback.
func Load(ctx context.Context, gw store.Gateway, fallback Mode) (Mode, error) {
	raw, ok, err := gw.Get(ctx, store.KeyThemeMode)
	if err != nil {
		return fallback, fmt.Errorf("load theme mode: %w", err)
	}
	if !ok {
		return fallback, nil
	}
	m, valid := ParseMode(raw)
	if !valid {
		return fallback, nil
	}
	return m, nil
}

// Save stores m as the preferred mode.
func Save(ctx context.Context, gw store.Gateway, m Mode) error {
	if _, ok := ParseMode(string(m)); !ok {
		return fmt.Errorf("unknown theme mode %q", m)
	}
	if err := gw.Set(ctx, store.KeyThemeMode, string(m)); err != nil {
		return fmt.Errorf("save theme mode: %w", err)
	}
	return nil
}

// Toggle switches current and saves the result. The new mode is returned
// even when saving fails.
func Toggle(ctx context.Context, gw store.Gateway, current Mode) (Mode, error) {
	next := current.Toggle()
	return next, Save(ctx, gw, next)
}
