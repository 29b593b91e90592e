package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/formdesk/formdesk/internal/platform/filestore"
	"github.com/formdesk/formdesk/internal/platform/metrics"
	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

var (
	// ErrTemplateNotFound is returned by operations that need the template
	// record to proceed (render, download).
	ErrTemplateNotFound = errors.New("template not found")
	// ErrMissingFile means the template record exists but its backing PDF
	// is gone from storage.
	ErrMissingFile = errors.New("template file missing from storage")
	// ErrValidation wraps rejected input (bad metadata or field geometry).
	ErrValidation = errors.New("validation failed")
)

// Service implements the template store operations on top of a Repository
// and a FileStore. Page geometry and file size are recomputed from the
// stored file on every read, never cached in the database.
type Service struct {
	repo     Repository
	files    filestore.FileStore
	renderer *pdfform.Renderer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, files filestore.FileStore, renderer *pdfform.Renderer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	s := &Service{
		repo:     repo,
		files:    files,
		renderer: renderer,
		metrics:  m,
		logger:   logger,
		validate: validator.New(),
	}
	if s.renderer.OnFallback == nil && m != nil {
		s.renderer.OnFallback = m.RenderFallbacks.Inc
	}
	return s
}

// buildFileName produces a unique storage key carrying the upload time and
// owner, e.g. "template_20260829_143005_mrodrigues_1a2b3c4d.pdf".
func buildFileName(owner string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, owner)
	if cleaned == "" || strings.Trim(cleaned, "-") == "" {
		cleaned = "unknown"
	}
	ts := time.Now().UTC().Format("20060102_150405")
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("template_%s_%s_%s.pdf", ts, cleaned, suffix)
}

// Create validates and stores an uploaded template PDF. The document is
// inspected before anything is persisted, so an unparseable upload leaves
// no trace.
func (s *Service) Create(ctx context.Context, p CreateParams, pdfData []byte) (*Template, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	info, err := pdfform.Inspect(pdfData)
	if err != nil {
		return nil, err
	}

	fileName := buildFileName(p.CreatedBy)
	if err := s.files.Put(ctx, fileName, pdfData); err != nil {
		return nil, fmt.Errorf("store template file: %w", err)
	}

	t := &Template{
		Name:        p.Name,
		Description: p.Description,
		FileName:    fileName,
		Fields:      []pdfform.Field{},
		Active:      true,
		CreatedBy:   p.CreatedBy,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	t.FileSize = int64(len(pdfData))
	t.PageCount = info.PageCount
	t.PageWidth = info.Width
	t.PageHeight = info.Height

	if s.metrics != nil {
		s.metrics.TemplatesCreated.Inc()
	}
	s.logger.Info().Int64("template_id", t.ID).Str("file", fileName).
		Int("pages", info.PageCount).Msg("template created")
	return t, nil
}

// Get returns a template with geometry recomputed from the stored file.
// Returns (nil, nil) when the template does not exist. A missing or
// unreadable backing file degrades to zero geometry rather than failing
// the metadata read.
func (s *Service) Get(ctx context.Context, id int64) (*Template, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil || t == nil {
		return t, err
	}

	data, err := s.files.Get(ctx, t.FileName)
	if err != nil {
		s.logger.Warn().Int64("template_id", id).Str("file", t.FileName).Err(err).
			Msg("template file unreadable")
		return t, nil
	}
	t.FileSize = int64(len(data))
	if info, err := pdfform.Inspect(data); err == nil {
		t.PageCount = info.PageCount
		t.PageWidth = info.Width
		t.PageHeight = info.Height
	}
	return t, nil
}

// GetPDF returns the raw stored template document.
func (s *Service) GetPDF(ctx context.Context, id int64) ([]byte, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTemplateNotFound
	}
	data, err := s.files.Get(ctx, t.FileName)
	if errors.Is(err, filestore.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, t.FileName)
	}
	return data, err
}

// List returns template summaries with live file sizes; a template whose
// file has gone missing lists with size zero.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Summary, error) {
	summaries, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		size, err := s.files.Stat(ctx, summaries[i].FileName)
		if err != nil {
			if !errors.Is(err, filestore.ErrFileNotFound) {
				return nil, err
			}
			s.logger.Warn().Int64("template_id", summaries[i].ID).
				Str("file", summaries[i].FileName).Msg("template file missing")
			continue
		}
		summaries[i].FileSize = size
	}
	return summaries, nil
}

// Update applies a partial metadata change and returns the fresh record,
// or (nil, nil) when the template does not exist.
func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (*Template, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ok, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// SoftDelete deactivates a template; the record and file stay put.
func (s *Service) SoftDelete(ctx context.Context, id int64) (bool, error) {
	return s.repo.SoftDelete(ctx, id)
}

// Duplicate clones a template and its field layout under a copied file.
// The file is copied before the record is created, so a storage failure
// leaves no orphan row. Returns (nil, nil) when the source is absent.
func (s *Service) Duplicate(ctx context.Context, id int64, createdBy string) (*Template, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil || src == nil {
		return nil, err
	}

	owner := createdBy
	if owner == "" {
		owner = src.CreatedBy
	}
	newFile := buildFileName(owner)
	if err := s.files.Copy(ctx, src.FileName, newFile); err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, src.FileName)
		}
		return nil, fmt.Errorf("copy template file: %w", err)
	}

	dup := &Template{
		Name:        src.Name + " (Copy)",
		Description: src.Description,
		FileName:    newFile,
		Fields:      src.Fields,
		Active:      true,
		CreatedBy:   owner,
	}
	if err := s.repo.Create(ctx, dup); err != nil {
		return nil, err
	}
	return s.Get(ctx, dup.ID)
}

// SaveFields replaces the whole field list. An empty list clears it.
// Returns false when the template does not exist.
func (s *Service) SaveFields(ctx context.Context, id int64, fields []pdfform.Field) (bool, error) {
	if err := pdfform.ValidateFields(fields); err != nil {
		return false, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ok, err := s.repo.SaveFields(ctx, id, fields)
	if err != nil {
		return false, err
	}
	if ok && s.metrics != nil {
		s.metrics.FieldSaves.Inc()
	}
	return ok, nil
}

// GetFields returns the stored field list; empty when the template is
// absent or has no fields yet.
func (s *Service) GetFields(ctx context.Context, id int64) ([]pdfform.Field, error) {
	return s.repo.GetFields(ctx, id)
}

// Render generates a filled PDF from the template and a value map keyed
// by field identifier.
func (s *Service) Render(ctx context.Context, id int64, values map[string]any) ([]byte, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTemplateNotFound
	}

	data, err := s.files.Get(ctx, t.FileName)
	if errors.Is(err, filestore.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, t.FileName)
	}
	if err != nil {
		return nil, err
	}

	out, err := s.renderer.Render(data, t.Fields, values)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Renders.Inc()
	}
	s.logger.Info().Int64("template_id", id).Int("fields", len(t.Fields)).
		Int("values", len(values)).Msg("rendered filled PDF")
	return out, nil
}

// IngestImage normalizes an uploaded image into a PNG data URL for use as
// a signature/image field value.
func (s *Service) IngestImage(data []byte) (string, error) {
	dataURL, err := pdfform.Ingest(data)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.ImagesIngested.Inc()
	}
	return dataURL, nil
}
