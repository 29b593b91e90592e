// Package pdfform implements the PDF template engine: introspecting
// uploaded documents, overlaying field values onto template pages, and
// normalizing uploaded images into data URLs.
package pdfform

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldType enumerates the supported form field kinds.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldTextarea  FieldType = "textarea"
	FieldCheckbox  FieldType = "checkbox"
	FieldRadio     FieldType = "radio"
	FieldDropdown  FieldType = "dropdown"
	FieldDate      FieldType = "date"
	FieldSignature FieldType = "signature"
	FieldImage     FieldType = "image"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldCheckbox, FieldRadio,
		FieldDropdown, FieldDate, FieldSignature, FieldImage:
		return true
	}
	return false
}

// Field is one positioned form field on a template page. Coordinates are
// in PDF points with the origin at the top-left of the page; the renderer
// converts to the bottom-up PDF coordinate space.
type Field struct {
	ID           string          `json:"field_id" validate:"required,min=1,max=100"`
	Name         string          `json:"name" validate:"required,min=1,max=255"`
	Type         FieldType       `json:"type" validate:"required,oneof=text textarea checkbox radio dropdown date signature image"`
	X            float64         `json:"x" validate:"gte=0"`
	Y            float64         `json:"y" validate:"gte=0"`
	Width        float64         `json:"width" validate:"gte=10,lte=2000"`
	Height       float64         `json:"height" validate:"gte=10,lte=2000"`
	FontSize     float64         `json:"font_size,omitempty" validate:"omitempty,gte=8,lte=72"`
	Required     bool            `json:"required"`
	Placeholder  string          `json:"placeholder,omitempty" validate:"max=500"`
	DefaultValue string          `json:"default_value,omitempty" validate:"max=1000"`
	Options      []string        `json:"options,omitempty"`
	Validation   json.RawMessage `json:"validation,omitempty"`
}

// Rendering defaults applied when a field omits geometry or font size.
const (
	defaultFieldWidth  = 100.0
	defaultFieldHeight = 20.0
	defaultFontSize    = 12.0
)

func (f Field) fontSize() float64 {
	if f.FontSize > 0 {
		return f.FontSize
	}
	return defaultFontSize
}

func (f Field) box() (x, y, w, h float64) {
	w, h = f.Width, f.Height
	if w <= 0 {
		w = defaultFieldWidth
	}
	if h <= 0 {
		h = defaultFieldHeight
	}
	return f.X, f.Y, w, h
}

var fieldValidator = validator.New()

// ValidateFields checks a whole field list against the schema constraints.
// The returned error names the first offending field.
func ValidateFields(fields []Field) error {
	for i, f := range fields {
		if err := fieldValidator.Struct(f); err != nil {
			return fmt.Errorf("field %d (%s): %w", i, f.ID, err)
		}
	}
	return nil
}
