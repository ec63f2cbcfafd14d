package domain

import "time"

// Frequency is how often a monitoring plan runs a cycle.
type Frequency string

const (
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiAnnual Frequency = "SEMI_ANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
)

// Months returns the period length in months, or 0 for an unknown frequency.
func (f Frequency) Months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnual:
		return 6
	case FrequencyAnnual:
		return 12
	default:
		return 0
	}
}

// Plan is a monitoring plan for one or more models.
type Plan struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Frequency   Frequency `json:"frequency"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlanMetric is one metric tracked by a plan. Its thresholds are editable;
// cycles use the copy frozen into a PlanVersion.
type PlanMetric struct {
	ID          string       `json:"id"`
	PlanID      string       `json:"planId"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Thresholds  ThresholdSet `json:"thresholds"`

	// Expression is an optional CEL formula over `inputs` that computes the
	// metric value when a result is entered without one.
	Expression string `json:"expression,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlanVersion is an immutable snapshot of a plan's metrics and thresholds.
type PlanVersion struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenantId,omitempty"`
	PlanID        string       `json:"planId"`
	VersionNumber int          `json:"versionNumber"`
	Label         string       `json:"label,omitempty"`
	Metrics       []PlanMetric `json:"metrics"`
	PublishedBy   string       `json:"publishedBy,omitempty"`
	PublishedAt   time.Time    `json:"publishedAt"`
}

// Metric returns the snapshot metric with the given id.
func (v *PlanVersion) Metric(metricID string) (PlanMetric, bool) {
	for _, m := range v.Metrics {
		if m.ID == metricID {
			return m, true
		}
	}
	return PlanMetric{}, false
}

// CycleStatus is the lifecycle state of a monitoring cycle.
type CycleStatus string

const (
	CycleStatusPending         CycleStatus = "PENDING"
	CycleStatusDataCollection  CycleStatus = "DATA_COLLECTION"
	CycleStatusUnderReview     CycleStatus = "UNDER_REVIEW"
	CycleStatusPendingApproval CycleStatus = "PENDING_APPROVAL"
	CycleStatusApproved        CycleStatus = "APPROVED"
	CycleStatusCompleted       CycleStatus = "COMPLETED"
	CycleStatusCancelled       CycleStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s CycleStatus) Terminal() bool {
	return s == CycleStatusCompleted || s == CycleStatusCancelled
}

// CycleAction names a lifecycle transition.
type CycleAction string

const (
	ActionStart           CycleAction = "start"
	ActionSubmit          CycleAction = "submit"
	ActionRequestApproval CycleAction = "request-approval"
	ActionApprove         CycleAction = "approve"
	ActionReject          CycleAction = "reject"
	ActionVoid            CycleAction = "void"
	ActionComplete        CycleAction = "complete"
	ActionCancel          CycleAction = "cancel"
	ActionPostpone        CycleAction = "postpone"
)

// StatusChange records one lifecycle transition.
type StatusChange struct {
	Action  CycleAction `json:"action"`
	From    CycleStatus `json:"from"`
	To      CycleStatus `json:"to"`
	Actor   string      `json:"actor,omitempty"`
	Comment string      `json:"comment,omitempty"`
	At      time.Time   `json:"at"`
}

// Cycle is one periodic run of a monitoring plan.
type Cycle struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenantId,omitempty"`
	PlanID        string      `json:"planId"`
	PlanVersionID string      `json:"planVersionId,omitempty"`
	Status        CycleStatus `json:"status"`
	PeriodStart   time.Time   `json:"periodStart"`
	PeriodEnd     time.Time   `json:"periodEnd"`
	DueDate       time.Time   `json:"dueDate"`

	PostponeCount   int        `json:"postponeCount"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`

	History   []StatusChange `json:"history"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// MetricResult is the value entered for one metric in one cycle.
type MetricResult struct {
	ID           string             `json:"id"`
	TenantID     string             `json:"tenantId,omitempty"`
	CycleID      string             `json:"cycleId"`
	PlanMetricID string             `json:"planMetricId"`
	Value        *float64           `json:"value"`
	Inputs       map[string]float64 `json:"inputs,omitempty"`
	Narrative    string             `json:"narrative,omitempty"`
	Outcome      Outcome            `json:"outcome"`
	RecordedBy   string             `json:"recordedBy,omitempty"`
	RecordedAt   time.Time          `json:"recordedAt"`
}

// TrendPoint is one cycle's value for a metric.
type TrendPoint struct {
	CycleID   string    `json:"cycleId"`
	PeriodEnd time.Time `json:"periodEnd"`
	Value     *float64  `json:"value"`
	Outcome   Outcome   `json:"outcome"`
}

// Trend is a metric's history together with the layout to draw it on.
type Trend struct {
	PlanMetricID string       `json:"planMetricId"`
	MetricName   string       `json:"metricName"`
	Points       []TrendPoint `json:"points"`
	Layout       Layout       `json:"layout"`
}

// ExceptionStatus is the state of a threshold breach exception.
type ExceptionStatus string

const (
	ExceptionOpen   ExceptionStatus = "OPEN"
	ExceptionClosed ExceptionStatus = "CLOSED"
)

// Exception records a RED result that needs follow-up.
type Exception struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenantId,omitempty"`
	PlanID       string          `json:"planId"`
	CycleID      string          `json:"cycleId"`
	PlanMetricID string          `json:"planMetricId"`
	Value        *float64        `json:"value"`
	Outcome      Outcome         `json:"outcome"`
	Status       ExceptionStatus `json:"status"`
	Resolution   string          `json:"resolution,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ClosedAt     *time.Time      `json:"closedAt,omitempty"`
}
