package domain

import "time"

// Rating is a validation scorecard rating. The empty rating means unrated.
type Rating string

const (
	RatingGreen       Rating = "Green"
	RatingGreenMinus  Rating = "Green-"
	RatingYellowPlus  Rating = "Yellow+"
	RatingYellow      Rating = "Yellow"
	RatingYellowMinus Rating = "Yellow-"
	RatingRed         Rating = "Red"
	RatingNA          Rating = "N/A"
	RatingUnrated     Rating = ""
)

// CriterionRating is the rating given to one scorecard criterion.
type CriterionRating struct {
	Code        string `json:"code"`
	Section     string `json:"section"`
	Description string `json:"description,omitempty"`
	Rating      Rating `json:"rating"`
	Comment     string `json:"comment,omitempty"`
}

// Scorecard is the set of criterion ratings for a validation request.
type Scorecard struct {
	ValidationID string            `json:"validationId"`
	TenantID     string            `json:"tenantId,omitempty"`
	Criteria     []CriterionRating `json:"criteria"`
	UpdatedBy    string            `json:"updatedBy,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// SectionSummary is the reduced rating of a scorecard section.
type SectionSummary struct {
	Section       string  `json:"section"`
	Rating        Rating  `json:"rating"`
	Score         int     `json:"score"`
	MeanScore     float64 `json:"meanScore"`
	RatedCount    int     `json:"ratedCount"`
	CriteriaCount int     `json:"criteriaCount"`
}

// ScorecardSummary is the reduced rating of a whole scorecard.
type ScorecardSummary struct {
	Sections      []SectionSummary `json:"sections"`
	OverallRating Rating           `json:"overallRating"`
	OverallScore  int              `json:"overallScore"`
}
