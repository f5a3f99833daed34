package types

import (
	"encoding/json"
	"time"
)

// ScholarshipStatus is the publication state of a listing.
type ScholarshipStatus string

const (
	ScholarshipOpen     ScholarshipStatus = "OPEN"
	ScholarshipClosed   ScholarshipStatus = "CLOSED"
	ScholarshipUpcoming ScholarshipStatus = "UPCOMING"
	ScholarshipDraft    ScholarshipStatus = "DRAFT"
)

// ScholarshipType classifies the funding body.
type ScholarshipType string

const (
	ScholarshipGovernment ScholarshipType = "GOVERNMENT"
	ScholarshipUniversity ScholarshipType = "UNIVERSITY"
	ScholarshipPrivate    ScholarshipType = "PRIVATE"
	ScholarshipNGO        ScholarshipType = "NGO"
)

// Scholarship is a funding opportunity students can apply to.
//
// ApplicationDeadline is the canonical deadline. Deadline is kept in the
// wire format as a deprecated mirror of the same value.
type Scholarship struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Provider            string            `json:"provider"`
	Country             string            `json:"country"`
	ImageURL            *string           `json:"imageUrl"`
	Level               string            `json:"level"`
	Status              ScholarshipStatus `json:"status"`
	Duration            *string           `json:"duration"`
	TuitionWaiver       *string           `json:"tuitionWaiver"`
	MonthlyStipend      *string           `json:"monthlyStipend"`
	ApplicationFee      *string           `json:"applicationFee"`
	FlightTicket        *string           `json:"flightTicket"`
	MaxAge              *int              `json:"maxAge"`
	OpenDate            *time.Time        `json:"openDate"`
	ApplicationDeadline *time.Time        `json:"applicationDeadLine"`
	Description         *string           `json:"description"`
	Value               *string           `json:"value"`
	FieldOfStudy        string            `json:"fieldOfStudy"`
	Type                ScholarshipType   `json:"type"`
	Eligibility         json.RawMessage   `json:"eligibility"`
	Benefits            json.RawMessage   `json:"benefits"`
	Requirements        json.RawMessage   `json:"requirements"`
	Timeline            json.RawMessage   `json:"timeline"`
	Featured            bool              `json:"featured"`
	CreatedByID         *string           `json:"createdById"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`

	Count *ScholarshipCount `json:"_count,omitempty"`
}

// ScholarshipCount aggregates rows referencing a scholarship.
type ScholarshipCount struct {
	Applications int `json:"applications"`
}

// MarshalJSON mirrors the canonical deadline into the legacy field.
func (s Scholarship) MarshalJSON() ([]byte, error) {
	type alias Scholarship
	return json.Marshal(struct {
		alias
		Deadline *time.Time `json:"deadline"`
	}{alias: alias(s), Deadline: s.ApplicationDeadline})
}

// AcceptsApplications reports whether a new application may be started at now.
func (s Scholarship) AcceptsApplications() bool {
	return s.Status == ScholarshipOpen
}

// DeadlinePassed reports whether the canonical deadline is before now.
func (s Scholarship) DeadlinePassed(now time.Time) bool {
	return s.ApplicationDeadline != nil && s.ApplicationDeadline.Before(now)
}

// ScholarshipSummary is the projection embedded in application listings.
type ScholarshipSummary struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Provider            string            `json:"provider"`
	Country             string            `json:"country"`
	Status              ScholarshipStatus `json:"status"`
	ApplicationDeadline *time.Time        `json:"applicationDeadLine"`
	Value               *string           `json:"value"`
	ImageURL            *string           `json:"imageUrl"`
}

func (s ScholarshipSummary) MarshalJSON() ([]byte, error) {
	type alias ScholarshipSummary
	return json.Marshal(struct {
		alias
		Deadline *time.Time `json:"deadline"`
	}{alias: alias(s), Deadline: s.ApplicationDeadline})
}

// ScholarshipChanges is a partial update of a scholarship.
type ScholarshipChanges struct {
	Title               *string
	Provider            *string
	Country             *string
	ImageURL            Optional[string]
	Level               *string
	Status              *ScholarshipStatus
	Duration            Optional[string]
	TuitionWaiver       Optional[string]
	MonthlyStipend      Optional[string]
	ApplicationFee      Optional[string]
	FlightTicket        Optional[string]
	MaxAge              Optional[int]
	OpenDate            Optional[time.Time]
	ApplicationDeadline Optional[time.Time]
	Description         Optional[string]
	Value               Optional[string]
	FieldOfStudy        *string
	Type                *ScholarshipType
	Eligibility         Optional[json.RawMessage]
	Benefits            Optional[json.RawMessage]
	Requirements        Optional[json.RawMessage]
	Timeline            Optional[json.RawMessage]
	Featured            *bool
}

// ScholarshipSort names a sortable listing column.
type ScholarshipSort string

const (
	SortByApplicationDeadline ScholarshipSort = "applicationDeadLine"
	SortByDeadline            ScholarshipSort = "deadline"
	SortByCreatedAt           ScholarshipSort = "createdAt"
	SortByTitle               ScholarshipSort = "title"
)

// ScholarshipFilter narrows scholarship listings. Empty fields do not filter.
type ScholarshipFilter struct {
	Search       string
	Status       ScholarshipStatus
	Country      string
	Level        string
	Type         ScholarshipType
	FieldOfStudy string
	Featured     *bool
	// ExcludeDrafts hides DRAFT listings regardless of Status.
	ExcludeDrafts bool
	SortBy        ScholarshipSort
	Descending    bool
	Offset        int
	Limit         int
}
