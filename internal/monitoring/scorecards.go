package monitoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scorecard"
)

// ScorecardView is a stored scorecard with its computed summary.
type ScorecardView struct {
	*domain.Scorecard
	Summary domain.ScorecardSummary `json:"summary"`
}

// SaveScorecard replaces the ratings of a validation's scorecard.
func (s *Service) SaveScorecard(ctx context.Context, tenantID, validationID string, criteria []domain.CriterionRating, actor string) (*ScorecardView, error) {
	if err := required("validationId", validationID); err != nil {
		return nil, err
	}
	if criteria == nil {
		criteria = []domain.CriterionRating{}
	}
	if err := scorecard.Normalize(criteria); err != nil {
		return nil, err
	}

	sc := &domain.Scorecard{
		ValidationID: validationID,
		TenantID:     tenantID,
		Criteria:     criteria,
		UpdatedBy:    actor,
		UpdatedAt:    s.now(),
	}
	if err := s.repo.SaveScorecard(ctx, tenantID, sc); err != nil {
		return nil, fmt.Errorf("failed to save scorecard: %w", err)
	}
	return &ScorecardView{Scorecard: sc, Summary: scorecard.Summarize(criteria)}, nil
}

// GetScorecard returns a validation's scorecard. A validation without one
// gets an empty, unrated scorecard.
func (s *Service) GetScorecard(ctx context.Context, tenantID, validationID string) (*ScorecardView, error) {
	sc, err := s.repo.GetScorecard(ctx, tenantID, validationID)
	if errors.Is(err, domain.ErrNotFound) {
		sc = &domain.Scorecard{ValidationID: validationID, TenantID: tenantID, Criteria: []domain.CriterionRating{}}
	} else if err != nil {
		return nil, err
	}
	return &ScorecardView{Scorecard: sc, Summary: scorecard.Summarize(sc.Criteria)}, nil
}
