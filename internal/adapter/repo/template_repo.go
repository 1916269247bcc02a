package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"facestudio/internal/domain"
	"facestudio/internal/infra"
	"facestudio/internal/sqlinline"
)

// TemplateRepositoryPG implements domain.TemplateRepository.
type TemplateRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTemplateRepository creates a template repository backed by PostgreSQL.
func NewTemplateRepository(sql infra.SQLExecutor) *TemplateRepositoryPG {
	return &TemplateRepositoryPG{sql: sql}
}

// GetByID fetches a live template by its identifier.
func (r *TemplateRepositoryPG) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	tpl, err := scanTemplate(r.sql.QueryRow(ctx, sqlinline.QSelectTemplateByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: template %d: %w", id, err)
	}
	return tpl, nil
}

// FindSibling looks up the template sharing tpl's pair key and group type
// with the requested face width.
func (r *TemplateRepositoryPG) FindSibling(ctx context.Context, tpl *domain.Template, faceType string) (*domain.Template, error) {
	if tpl == nil || tpl.PairKey == "" {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTemplateSibling, tpl.PairKey, int(tpl.GroupType), faceType, tpl.ID)
	sibling, err := scanTemplate(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: sibling of template %d: %w", tpl.ID, err)
	}
	return sibling, nil
}

func scanTemplate(row pgx.Row) (*domain.Template, error) {
	var (
		tpl       domain.Template
		groupType int
	)
	if err := row.Scan(
		&tpl.ID,
		&groupType,
		&tpl.FaceType,
		&tpl.PairKey,
		&tpl.ImageURL,
		&tpl.MaskedImageURL,
		&tpl.RegionCacheURL,
	); err != nil {
		return nil, err
	}
	tpl.GroupType = domain.GroupType(groupType)
	return &tpl, nil
}

var _ domain.TemplateRepository = (*TemplateRepositoryPG)(nil)
