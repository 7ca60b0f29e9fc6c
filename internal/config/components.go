package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bloodbank-backend/internal/models"
)

type componentSettingsFile struct {
	Components []models.ComponentSetting `yaml:"components"`
}

// LoadComponentSettings reads component ratio and shelf-life overrides from a YAML file:
//
//	components:
//	  - component: RBC
//	    ratio: 0.45
//	    shelf_life_days: 35
func LoadComponentSettings(path string) ([]models.ComponentSetting, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read component settings: %w", err)
	}
	return ParseComponentSettings(raw)
}

func ParseComponentSettings(raw []byte) ([]models.ComponentSetting, error) {
	var f componentSettingsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse component settings: %w", err)
	}

	seen := make(map[models.Component]bool, len(f.Components))
	out := make([]models.ComponentSetting, 0, len(f.Components))
	for _, s := range f.Components {
		comp, ok := models.ParseComponent(string(s.Component))
		if !ok {
			return nil, fmt.Errorf("unknown component %q", s.Component)
		}
		if seen[comp] {
			return nil, fmt.Errorf("component %s listed twice", comp)
		}
		if s.Ratio <= 0 || s.Ratio > 1 {
			return nil, fmt.Errorf("component %s: ratio must be in (0, 1], got %v", comp, s.Ratio)
		}
		if s.ShelfLifeDays < 0 {
			return nil, fmt.Errorf("component %s: shelf_life_days must not be negative", comp)
		}
		seen[comp] = true
		s.Component = comp
		out = append(out, s)
	}
	return out, nil
}
