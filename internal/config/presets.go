package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Presets captures the style options offered to the export surface: caption
// styles, vertical placements, and resolution caps. The export payload
// references entries by id.
type Presets struct {
	Version        int               `yaml:"version" json:"version"`
	CaptionStyles  []CaptionStyle    `yaml:"caption_styles" json:"caption_styles"`
	Placements     []Placement       `yaml:"placements" json:"placements"`
	ResolutionCaps []ResolutionCap   `yaml:"resolution_caps" json:"resolution_caps"`
	Defaults       PresetDefaults    `yaml:"defaults" json:"defaults"`
}

// CaptionStyle describes how overlay text is rendered by the render service.
type CaptionStyle struct {
	ID           string  `yaml:"id" json:"id"`
	FontFamily   string  `yaml:"font_family" json:"font_family"`
	FontSizeMain int     `yaml:"font_size_main" json:"font_size_main"`
	FontSizeSub  int     `yaml:"font_size_sub" json:"font_size_sub"`
	Color        string  `yaml:"color" json:"color"`
	OutlineColor string  `yaml:"outline_color" json:"outline_color"`
	Opacity      float64 `yaml:"opacity" json:"opacity"`
}

// Placement is a named vertical anchor for caption text.
type Placement struct {
	ID       string  `yaml:"id" json:"id"`
	Fraction float64 `yaml:"fraction" json:"fraction"` // 0 = top edge, 1 = bottom edge
}

// ResolutionCap bounds the output dimensions of an export.
type ResolutionCap struct {
	ID     string `yaml:"id" json:"id"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// PresetDefaults names the preset ids used when a request omits them.
type PresetDefaults struct {
	CaptionStyle  string `yaml:"caption_style" json:"caption_style"`
	Placement     string `yaml:"placement" json:"placement"`
	ResolutionCap string `yaml:"resolution_cap" json:"resolution_cap"`
}

// DefaultPresets returns the baseline presets shipped with the agent.
func DefaultPresets() Presets {
	return Presets{
		Version: 1,
		CaptionStyles: []CaptionStyle{
			{ID: "clean", FontFamily: "Inter", FontSizeMain: 42, FontSizeSub: 32, Color: "white", OutlineColor: "black", Opacity: 1.0},
			{ID: "bold", FontFamily: "Inter", FontSizeMain: 54, FontSizeSub: 40, Color: "white", OutlineColor: "black", Opacity: 1.0},
		},
		Placements: []Placement{
			{ID: "lower", Fraction: 0.8},
			{ID: "center", Fraction: 0.5},
			{ID: "upper", Fraction: 0.2},
		},
		ResolutionCaps: []ResolutionCap{
			{ID: "1080p", Width: 1920, Height: 1080},
			{ID: "720p", Width: 1280, Height: 720},
		},
		Defaults: PresetDefaults{
			CaptionStyle:  "clean",
			Placement:     "lower",
			ResolutionCap: "1080p",
		},
	}
}

// LoadPresets reads presets from path, falling back to DefaultPresets when
// path is empty. Entries in the file replace the built-ins wholesale.
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Presets{}, fmt.Errorf("read presets: %w", err)
	}

	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Presets{}, fmt.Errorf("parse presets: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Presets{}, err
	}
	return p, nil
}

// Validate checks referential integrity of the presets document.
func (p Presets) Validate() error {
	if len(p.CaptionStyles) == 0 {
		return errors.New("presets: at least one caption style is required")
	}
	if len(p.Placements) == 0 {
		return errors.New("presets: at least one placement is required")
	}
	if len(p.ResolutionCaps) == 0 {
		return errors.New("presets: at least one resolution cap is required")
	}
	if p.CaptionStyle(p.Defaults.CaptionStyle) == nil {
		return fmt.Errorf("presets: default caption style %q not defined", p.Defaults.CaptionStyle)
	}
	if p.Placement(p.Defaults.Placement) == nil {
		return fmt.Errorf("presets: default placement %q not defined", p.Defaults.Placement)
	}
	if p.ResolutionCap(p.Defaults.ResolutionCap) == nil {
		return fmt.Errorf("presets: default resolution cap %q not defined", p.Defaults.ResolutionCap)
	}
	for _, pl := range p.Placements {
		if pl.Fraction < 0 || pl.Fraction > 1 {
			return fmt.Errorf("presets: placement %q fraction must be within [0,1]", pl.ID)
		}
	}
	return nil
}

// CaptionStyle returns the caption style with the given id, or nil.
func (p Presets) CaptionStyle(id string) *CaptionStyle {
	for i := range p.CaptionStyles {
		if p.CaptionStyles[i].ID == id {
			return &p.CaptionStyles[i]
		}
	}
	return nil
}

// Placement returns the placement with the given id, or nil.
func (p Presets) Placement(id string) *Placement {
	for i := range p.Placements {
		if p.Placements[i].ID == id {
			return &p.Placements[i]
		}
	}
	return nil
}

// ResolutionCap returns the resolution cap with the given id, or nil.
func (p Presets) ResolutionCap(id string) *ResolutionCap {
	for i := range p.ResolutionCaps {
		if p.ResolutionCaps[i].ID == id {
			return &p.ResolutionCaps[i]
		}
	}
	return nil
}
