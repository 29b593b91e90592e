// Package templates implements the PDF template store: uploading base
// documents, managing their field layouts, and generating filled PDFs.
package templates

import (
	"time"

	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

// Template is a stored base PDF with its field layout. FileSize, PageCount,
// PageWidth and PageHeight are derived per request, never persisted: the
// stored file is the single source of truth for them.
type Template struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	FileName    string          `json:"file_name"`
	Fields      []pdfform.Field `json:"fields"`
	Active      bool            `json:"active"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	FileSize   int64   `json:"file_size,omitempty"`
	PageCount  int     `json:"page_count,omitempty"`
	PageWidth  float64 `json:"page_width,omitempty"`
	PageHeight float64 `json:"page_height,omitempty"`
}

// Summary is the listing projection of a Template: field contents are
// reduced to a count and the file to its current size.
type Summary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FileName    string    `json:"file_name"`
	FieldCount  int       `json:"field_count"`
	FileSize    int64     `json:"file_size"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdateParams carries a partial metadata update; nil means "leave as is".
type UpdateParams struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Active      *bool   `json:"active,omitempty"`
}

// CreateParams carries the metadata accompanying an uploaded template PDF.
type CreateParams struct {
	Name        string `validate:"required,min=1,max=255"`
	Description string `validate:"max=2000"`
	CreatedBy   string `validate:"max=255"`
}
