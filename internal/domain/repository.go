package domain

import "context"

// TemplateRepository reads face swap templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, id int64) (*Template, error)
	// FindSibling returns the variant of tpl with the given face width, or
	// ErrNotFound.
	FindSibling(ctx context.Context, tpl *Template, faceType string) (*Template, error)
}
