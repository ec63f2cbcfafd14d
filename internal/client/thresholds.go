package client

import (
	"context"
	"net/http"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/monitoring"
	"github.com/opensource-finance/kestrel/internal/scorecard"
)

// Classify asks the server to classify value against t.
func (c *Client) Classify(ctx context.Context, value *float64, t domain.ThresholdSet) (*api.ClassifyResponse, error) {
	var out api.ClassifyResponse
	if err := c.do(ctx, http.MethodPost, "/thresholds/classify", api.ClassifyRequest{Value: value, Thresholds: t}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateThresholds returns the violated invariants of t.
func (c *Client) ValidateThresholds(ctx context.Context, t domain.ThresholdSet) (*api.ValidateResponse, error) {
	var out api.ValidateResponse
	if err := c.do(ctx, http.MethodPost, "/thresholds/validate", t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Layout fetches the drawing layout of t over the observed values.
func (c *Client) Layout(ctx context.Context, t domain.ThresholdSet, values []float64) (*domain.Layout, error) {
	var out domain.Layout
	if err := c.do(ctx, http.MethodPost, "/thresholds/layout", api.LayoutRequest{Thresholds: t, Values: values}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ratings lists the selectable scorecard ratings.
func (c *Client) Ratings(ctx context.Context) ([]scorecard.RatingInfo, error) {
	var out []scorecard.RatingInfo
	if err := c.do(ctx, http.MethodGet, "/scorecard/ratings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetScorecard fetches a validation's scorecard.
func (c *Client) GetScorecard(ctx context.Context, validationID string) (*monitoring.ScorecardView, error) {
	var out monitoring.ScorecardView
	if err := c.do(ctx, http.MethodGet, "/scorecard/"+escape(validationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveScorecard replaces a validation's criterion ratings.
func (c *Client) SaveScorecard(ctx context.Context, validationID string, criteria []domain.CriterionRating) (*monitoring.ScorecardView, error) {
	var out monitoring.ScorecardView
	if err := c.do(ctx, http.MethodPut, "/scorecard/"+escape(validationID), api.ScorecardRequest{Criteria: criteria}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
