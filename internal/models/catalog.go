package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Template categories.
const (
	CategoryNormal     = "normal"
	CategoryFinding    = "finding"
	CategoryConclusion = "conclusion"
)

// DefaultLocale is the language picked from bilingual template text.
const DefaultLocale = "pt-BR"

// LocalizedText is template text that decodes either from a plain string or from
// a {"pt-BR": "...", "en-US": "..."} object, keeping the DefaultLocale entry.
type LocalizedText string

// UnmarshalJSON accepts a string, null, or a locale object.
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = LocalizedText(s)
		return nil
	}
	var byLocale map[string]string
	if err := json.Unmarshal(data, &byLocale); err != nil {
		return fmt.Errorf("localized text: %w", err)
	}
	if s, ok := byLocale[DefaultLocale]; ok {
		*t = LocalizedText(s)
		return nil
	}
	locales := make([]string, 0, len(byLocale))
	for k := range byLocale {
		locales = append(locales, k)
	}
	sort.Strings(locales)
	if len(locales) > 0 {
		*t = LocalizedText(byLocale[locales[0]])
	} else {
		*t = ""
	}
	return nil
}

// String returns the text.
func (t LocalizedText) String() string { return string(t) }

// TextFormatting holds the whole-text style flags of a template.
type TextFormatting struct {
	Bold   bool `json:"bold,omitempty"`
	Italic bool `json:"italic,omitempty"`
}

// TemplateText is a reusable finding text for an organ.
type TemplateText struct {
	ID         string         `json:"id"`
	Organ      string         `json:"organ"`
	Category   string         `json:"category"`
	Title      LocalizedText  `json:"title,omitempty"`
	Text       LocalizedText  `json:"text"`
	Formatting TextFormatting `json:"formatting"`
	Order      int            `json:"order"`
}

// Validate checks organ, category and text.
func (t *TemplateText) Validate() error {
	if t.Organ == "" {
		return errors.New("organ cannot be empty")
	}
	switch t.Category {
	case CategoryNormal, CategoryFinding, CategoryConclusion:
	default:
		return fmt.Errorf("invalid category %q", t.Category)
	}
	if t.Text == "" {
		return errors.New("text cannot be empty")
	}
	return nil
}

// ReferenceValue is a normal range for one measurement of an organ,
// scoped by species and size.
type ReferenceValue struct {
	ID              string  `json:"id"`
	Organ           string  `json:"organ"`
	MeasurementType string  `json:"measurement_type"`
	Species         string  `json:"species"`
	Size            string  `json:"size"`
	MinValue        float64 `json:"min_value"`
	MaxValue        float64 `json:"max_value"`
	Unit            string  `json:"unit"`
}

// Validate checks the key fields, the unit and the range bounds.
func (r *ReferenceValue) Validate() error {
	if r.Organ == "" || r.MeasurementType == "" {
		return errors.New("organ and measurement_type cannot be empty")
	}
	if r.Species == "" || r.Size == "" {
		return errors.New("species and size cannot be empty")
	}
	if err := (Measurement{Unit: r.Unit}).Validate(); err != nil {
		return err
	}
	if r.MinValue > r.MaxValue {
		return fmt.Errorf("min_value %v greater than max_value %v", r.MinValue, r.MaxValue)
	}
	return nil
}

// Contains reports whether m lies inside the range, compared in the range's unit.
func (r *ReferenceValue) Contains(m Measurement) bool {
	v := m.Value
	switch {
	case m.Unit == UnitMillimeters && r.Unit == UnitCentimeters:
		v = m.Value / 10
	case m.Unit == UnitCentimeters && r.Unit == UnitMillimeters:
		v = m.Value * 10
	}
	return v >= r.MinValue && v <= r.MaxValue
}

// ReferenceFilter narrows reference value listings; empty fields match everything.
type ReferenceFilter struct {
	Organ   string
	Species string
	Size    string
}

// Match reports whether r passes the filter.
func (f ReferenceFilter) Match(r *ReferenceValue) bool {
	return (f.Organ == "" || f.Organ == r.Organ) &&
		(f.Species == "" || f.Species == r.Species) &&
		(f.Size == "" || f.Size == r.Size)
}
