package pdfform

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/rs/zerolog"
)

// Renderer overlays field values onto a template PDF. Each Render call is
// self-contained; a single Renderer is safe for concurrent use.
type Renderer struct {
	// TempDir receives the short-lived image files written while drawing
	// signature/image fields. Empty means the OS default.
	TempDir string
	Logger  zerolog.Logger
	// OnFallback, when set, is called each time a field falls back to its
	// placeholder label instead of rendering its value.
	OnFallback func()
}

// Render imports every page of the base document, draws the supplied
// values over the first page's fields, and returns the composed PDF.
// Field-level failures (bad image data, draw errors) degrade to a
// placeholder label; only document-level failures return an error.
func (r *Renderer) Render(base []byte, fields []Field, values map[string]any) (out []byte, err error) {
	// gofpdi panics on malformed input rather than returning errors.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidDocument, rec)
		}
	}()

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	// Pin the embedded timestamps so identical input yields identical bytes.
	epoch := time.Unix(0, 0).UTC()
	pdf.SetCreationDate(epoch)
	pdf.SetModificationDate(epoch)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(base))
	first := imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")

	sizes := imp.GetPageSizes()
	pageCount := len(sizes)
	pageW := sizes[1]["/MediaBox"]["w"]
	pageH := sizes[1]["/MediaBox"]["h"]

	pdf.AddPageFormat("P", fpdf.SizeType{Wd: pageW, Ht: pageH})
	imp.UseImportedTemplate(pdf, first, 0, 0, pageW, pageH)

	for _, f := range fields {
		r.drawField(pdf, tr, f, values)
	}

	// Remaining pages pass through unmodified.
	for p := 2; p <= pageCount; p++ {
		prs := io.ReadSeeker(bytes.NewReader(base))
		tpl := imp.ImportPageFromStream(pdf, &prs, p, "/MediaBox")
		w := sizes[p]["/MediaBox"]["w"]
		h := sizes[p]["/MediaBox"]["h"]
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tpl, 0, 0, w, h)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawField(pdf *fpdf.Fpdf, tr func(string) string, f Field, values map[string]any) {
	// Absent, nil and empty-string values skip the field entirely, for
	// every type: no glyph, no placeholder. Defaults are form-filling
	// hints for the caller, not render content.
	val, ok := values[f.ID]
	if !ok || val == nil {
		return
	}
	if s, isStr := val.(string); isStr && s == "" {
		return
	}

	x, y, _, h := f.box()
	size := f.fontSize()

	switch f.Type {
	case FieldCheckbox:
		drawCheckbox(pdf, x, y, h, size, truthy(val))

	case FieldSignature, FieldImage:
		if err := r.drawImageValue(pdf, f, val); err != nil {
			label := "[Image]"
			if f.Type == FieldSignature {
				label = "[Signature]"
			}
			r.Logger.Warn().Str("field", f.ID).Err(err).Msg("field fell back to placeholder")
			if r.OnFallback != nil {
				r.OnFallback()
			}
			pdf.SetFont("Helvetica", "I", 10)
			pdf.Text(x+2, y+h/2, label)
		}

	default:
		// text, textarea, radio, dropdown, date: a single line, vertically
		// centered. Textareas are not wrapped.
		pdf.SetFont("Helvetica", "", size)
		pdf.Text(x+2, y+h/2+size/3, tr(stringify(val)))
	}
}

// drawCheckbox draws a square outline sized to the font, with check
// strokes when the value is truthy. Vector strokes are used because the
// core fonts have no box-glyph codepoints.
func drawCheckbox(pdf *fpdf.Fpdf, x, y, h, fontSize float64, checked bool) {
	side := fontSize * 0.8
	bx := x + 2
	by := y + h/2 - side/2
	pdf.Rect(bx, by, side, side, "D")
	if checked {
		pdf.Line(bx+side*0.2, by+side*0.55, bx+side*0.42, by+side*0.78)
		pdf.Line(bx+side*0.42, by+side*0.78, bx+side*0.82, by+side*0.22)
	}
}

// drawImageValue decodes a data-URL value, writes it to a temporary file,
// and draws it into the field's box preserving aspect ratio. The file is
// removed before returning regardless of the draw outcome.
func (r *Renderer) drawImageValue(pdf *fpdf.Fpdf, f Field, val any) error {
	s, ok := val.(string)
	if !ok || !strings.HasPrefix(s, "data:image") {
		return fmt.Errorf("value is not an image data URL")
	}
	comma := strings.Index(s, ",")
	if comma < 0 {
		return fmt.Errorf("malformed data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}

	// Validate before handing bytes to the canvas: a decode failure inside
	// the drawing library would poison the whole document's error state.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("degenerate image dimensions %dx%d", cfg.Width, cfg.Height)
	}

	tmp, err := os.CreateTemp(r.TempDir, "formdesk-field-*."+format)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			r.Logger.Warn().Str("file", tmp.Name()).Err(rmErr).Msg("temp file cleanup failed")
		}
	}()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	x, y, w, h := f.box()
	scale := math.Min(w/float64(cfg.Width), h/float64(cfg.Height))
	dw := float64(cfg.Width) * scale
	dh := float64(cfg.Height) * scale
	dx := x + (w-dw)/2
	dy := y + (h-dh)/2

	pdf.ImageOptions(tmp.Name(), dx, dy, dw, dh, false,
		fpdf.ImageOptions{ImageType: format}, 0, "")
	if pdf.Err() {
		drawErr := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("draw image: %w", drawErr)
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case int:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}
