package pdfform

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidDocument indicates the uploaded bytes are not a usable PDF.
var ErrInvalidDocument = errors.New("invalid PDF document")

// Info holds the geometry extracted from an uploaded PDF: the page count
// and the media-box dimensions of the first page, in points.
type Info struct {
	PageCount int
	Width     float64
	Height    float64
}

// Inspect parses the document and returns its geometry. Validation is
// relaxed so documents with minor structural quirks still pass, matching
// what real-world scanned templates look like.
func Inspect(data []byte) (Info, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if ctx.PageCount < 1 {
		return Info{}, fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}

	dims, err := ctx.PageDims()
	if err != nil || len(dims) == 0 {
		return Info{}, fmt.Errorf("%w: cannot read page dimensions", ErrInvalidDocument)
	}

	return Info{
		PageCount: ctx.PageCount,
		Width:     dims[0].Width,
		Height:    dims[0].Height,
	}, nil
}
