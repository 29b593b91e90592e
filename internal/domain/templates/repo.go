package templates

import (
	"context"

	"github.com/formdesk/formdesk/internal/platform/pdfform"
)

// Repository is the persistence contract for templates. Lookups return
// (nil, nil) when the record does not exist; write operations against a
// missing record return false. Soft deletion only hides a template from
// List (unless includeInactive is set); by-id access keeps working so a
// deactivated template can be re-enabled via Update.
type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id int64) (*Template, error)
	List(ctx context.Context, includeInactive bool) ([]Summary, error)
	Update(ctx context.Context, id int64, p UpdateParams) (bool, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
	SaveFields(ctx context.Context, id int64, fields []pdfform.Field) (bool, error)
	GetFields(ctx context.Context, id int64) ([]pdfform.Field, error)
}
