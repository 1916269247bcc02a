// Package templates picks the template variant that fits a detected face.
package templates

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"facestudio/internal/domain"
	"facestudio/internal/facetype"
	"facestudio/internal/infra"
)

// Downgrade reasons reported by Match.
const (
	ReasonNoSibling    = "sibling_not_found"
	ReasonLookupFailed = "sibling_lookup_failed"
)

// SiblingFinder is the subset of domain.TemplateRepository the matcher needs.
type SiblingFinder interface {
	FindSibling(ctx context.Context, tpl *domain.Template, faceType string) (*domain.Template, error)
}

// MatchResult is the template to render with and how it was chosen.
type MatchResult struct {
	Template *domain.Template
	// Substituted is set when a sibling replaced the requested template.
	Substituted bool
	// Downgraded is set when a sibling was needed but could not be used.
	Downgraded bool
	Reason     string
}

// Matcher swaps templates for their wide or narrow sibling.
type Matcher struct {
	finder SiblingFinder
	logger *infra.Logger
}

func NewMatcher(finder SiblingFinder, logger *infra.Logger) *Matcher {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Matcher{finder: finder, logger: logger}
}

// Match returns the variant of tpl matching faceType, which may be a display
// label or a canonical width. It never fails: on any problem the original
// template is kept.
func (m *Matcher) Match(ctx context.Context, tpl *domain.Template, faceType string) MatchResult {
	result := MatchResult{Template: tpl}
	if tpl == nil || !tpl.GroupType.FaceWidthSensitive() {
		return result
	}
	want, ok := facetype.ToDB(faceType)
	if !ok || tpl.FaceType == facetype.Both || tpl.FaceType == want {
		return result
	}

	logger := m.logger.With().
		Int64("template_id", tpl.ID).
		Str("pair_key", tpl.PairKey).
		Str("face_type", want).
		Logger()

	sibling, err := m.finder.FindSibling(ctx, tpl, want)
	switch {
	case err == nil && sibling != nil:
		logger.Debug().Int64("sibling_id", sibling.ID).Msg("templates: substituted sibling")
		return MatchResult{Template: sibling, Substituted: true}
	case err == nil, errors.Is(err, domain.ErrNotFound):
		result.Reason = ReasonNoSibling
		logger.Warn().Msg("templates: no sibling for face type, keeping original")
	default:
		result.Reason = ReasonLookupFailed
		logger.Warn().Err(err).Msg("templates: sibling lookup failed, keeping original")
	}
	result.Downgraded = true
	return result
}
