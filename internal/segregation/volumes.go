package segregation

import (
	"time"

	"bloodbank-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Setting is the split ratio and shelf life of one component.
type Setting struct {
	Ratio         decimal.Decimal
	ShelfLifeDays int
}

// DefaultSettings apply to every component without a component_settings row.
var DefaultSettings = map[models.Component]Setting{
	models.ComponentRBC:       {Ratio: decimal.RequireFromString("0.45"), ShelfLifeDays: 35},
	models.ComponentPlasma:    {Ratio: decimal.RequireFromString("0.45"), ShelfLifeDays: 365},
	models.ComponentPlatelets: {Ratio: decimal.RequireFromString("0.10"), ShelfLifeDays: 5},
}

// MergeSettings overlays stored rows on the defaults.
func MergeSettings(rows []models.ComponentSetting) map[models.Component]Setting {
	out := make(map[models.Component]Setting, len(DefaultSettings))
	for k, v := range DefaultSettings {
		out[k] = v
	}
	for _, r := range rows {
		c, ok := models.ParseComponent(string(r.Component))
		if !ok {
			continue
		}
		out[c] = Setting{Ratio: decimal.NewFromFloat(r.Ratio), ShelfLifeDays: r.ShelfLifeDays}
	}
	return out
}

// ResolveComponents normalises a requested component list. Unknown names are
// dropped and repeats collapse onto their first occurrence. An empty result
// means all components in canonical order.
func ResolveComponents(requested []string) []models.Component {
	seen := make(map[models.Component]bool, len(models.AllComponents))
	out := make([]models.Component, 0, len(models.AllComponents))
	for _, name := range requested {
		c, ok := models.ParseComponent(name)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return append(out, models.AllComponents...)
	}
	return out
}

// designatedComponent receives the rounding remainder: Platelets when
// requested, otherwise the last component in the list.
func designatedComponent(components []models.Component) models.Component {
	for _, c := range components {
		if c == models.ComponentPlatelets {
			return c
		}
	}
	return components[len(components)-1]
}

// ComputeVolumes splits a collected volume across the components. Every
// component but the designated one is rounded half-to-even; the designated
// one takes round(collected) minus the others so the total is preserved.
// Volumes never go below zero.
func ComputeVolumes(collected float64, components []models.Component, settings map[models.Component]Setting) map[models.Component]int {
	out := make(map[models.Component]int, len(components))
	if len(components) == 0 {
		return out
	}

	total := decimal.NewFromFloat(collected)
	designated := designatedComponent(components)

	var assigned int64
	for _, c := range components {
		if c == designated {
			continue
		}
		v := total.Mul(settingFor(settings, c).Ratio).RoundBank(0).IntPart()
		if v < 0 {
			v = 0
		}
		out[c] = int(v)
		assigned += v
	}

	rest := total.RoundBank(0).IntPart() - assigned
	if rest < 0 {
		rest = 0
	}
	out[designated] = int(rest)
	return out
}

func settingFor(settings map[models.Component]Setting, c models.Component) Setting {
	if s, ok := settings[c]; ok {
		return s
	}
	return DefaultSettings[c]
}

// CalendarDay returns the calendar date of t, read in t's own location, as a
// UTC midnight. Expiry dates are stored in the same form.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ExpiryDate is the calendar date of segregatedAt plus the shelf life.
// Callers pass segregatedAt in the service timezone.
func ExpiryDate(segregatedAt time.Time, shelfLifeDays int) time.Time {
	return CalendarDay(segregatedAt).AddDate(0, 0, shelfLifeDays)
}
