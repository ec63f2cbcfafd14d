// Package scorecard maps validation scorecard ratings to scores and reduces
// criterion ratings to section and overall ratings.
package scorecard

import (
	"fmt"
	"math"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ordered lists the ratings from best to worst, followed by N/A.
var ordered = []domain.Rating{
	domain.RatingGreen,
	domain.RatingGreenMinus,
	domain.RatingYellowPlus,
	domain.RatingYellow,
	domain.RatingYellowMinus,
	domain.RatingRed,
	domain.RatingNA,
}

var scores = map[domain.Rating]int{
	domain.RatingGreen:       6,
	domain.RatingGreenMinus:  5,
	domain.RatingYellowPlus:  4,
	domain.RatingYellow:      3,
	domain.RatingYellowMinus: 2,
	domain.RatingRed:         1,
	domain.RatingNA:          0,
	domain.RatingUnrated:     0,
}

// RatingInfo describes one rating for clients building pickers.
type RatingInfo struct {
	Rating domain.Rating  `json:"rating"`
	Score  int            `json:"score"`
	Color  domain.Outcome `json:"color"`
}

// Ratings returns every selectable rating with its score and color family.
func Ratings() []RatingInfo {
	out := make([]RatingInfo, 0, len(ordered))
	for _, r := range ordered {
		out = append(out, RatingInfo{Rating: r, Score: Score(r), Color: Color(r)})
	}
	return out
}

// ParseRating accepts a rating name, case-insensitively. Empty input and
// "null" parse as unrated.
func ParseRating(s string) (domain.Rating, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return domain.RatingUnrated, nil
	}
	for _, r := range ordered {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return domain.RatingUnrated, fmt.Errorf("%w: unknown rating %q", domain.ErrInvalidInput, s)
}

// Score maps a rating to 0..6. N/A, unrated and unknown ratings score 0.
func Score(r domain.Rating) int {
	return scores[r]
}

// Rated reports whether r counts towards section and overall scores.
func Rated(r domain.Rating) bool {
	return Score(r) > 0
}

// RatingForScore maps 1..6 back to a rating; anything else is unrated.
func RatingForScore(score int) domain.Rating {
	for _, r := range ordered {
		if r != domain.RatingNA && scores[r] == score {
			return r
		}
	}
	return domain.RatingUnrated
}

// Color returns the threshold color family a rating is drawn with.
func Color(r domain.Rating) domain.Outcome {
	switch r {
	case domain.RatingGreen, domain.RatingGreenMinus:
		return domain.OutcomeGreen
	case domain.RatingYellowPlus, domain.RatingYellow, domain.RatingYellowMinus:
		return domain.OutcomeYellow
	case domain.RatingRed:
		return domain.OutcomeRed
	default:
		return domain.OutcomeNA
	}
}

// Summarize reduces criterion ratings to per-section and overall ratings.
// Sections keep the order in which they first appear.
func Summarize(criteria []domain.CriterionRating) domain.ScorecardSummary {
	var sections []domain.SectionSummary
	index := make(map[string]int)
	totals := make(map[string]int)

	for _, c := range criteria {
		i, ok := index[c.Section]
		if !ok {
			i = len(sections)
			index[c.Section] = i
			sections = append(sections, domain.SectionSummary{Section: c.Section})
		}
		sections[i].CriteriaCount++
		if Rated(c.Rating) {
			sections[i].RatedCount++
			totals[c.Section] += Score(c.Rating)
		}
	}

	var overallTotal float64
	var overallCount int
	for i := range sections {
		s := &sections[i]
		if s.RatedCount == 0 {
			continue
		}
		s.MeanScore = float64(totals[s.Section]) / float64(s.RatedCount)
		s.Score = int(math.Round(s.MeanScore))
		s.Rating = RatingForScore(s.Score)

		overallTotal += float64(s.Score)
		overallCount++
	}

	summary := domain.ScorecardSummary{Sections: sections}
	if overallCount > 0 {
		summary.OverallScore = int(math.Round(overallTotal / float64(overallCount)))
		summary.OverallRating = RatingForScore(summary.OverallScore)
	}
	return summary
}

// Normalize parses every criterion rating in place, rejecting unknown values.
func Normalize(criteria []domain.CriterionRating) error {
	for i := range criteria {
		if strings.TrimSpace(criteria[i].Code) == "" {
			return fmt.Errorf("%w: criterion %d has no code", domain.ErrInvalidInput, i)
		}
		r, err := ParseRating(string(criteria[i].Rating))
		if err != nil {
			return fmt.Errorf("criterion %s: %w", criteria[i].Code, err)
		}
		criteria[i].Rating = r
	}
	return nil
}
