package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/types"
)

type scholarshipQuery struct {
	pipeline.Pagination
	Search       string                  `form:"search"`
	Status       types.ScholarshipStatus `form:"status" validate:"omitempty,oneof=OPEN CLOSED UPCOMING DRAFT"`
	Country      string                  `form:"country"`
	Level        string                  `form:"level"`
	Type         types.ScholarshipType   `form:"type" validate:"omitempty,oneof=GOVERNMENT UNIVERSITY PRIVATE NGO"`
	FieldOfStudy string                  `form:"fieldOfStudy"`
	Featured     *bool                   `form:"featured"`
	SortBy       types.ScholarshipSort   `form:"sortBy" validate:"oneof=applicationDeadLine deadline createdAt title"`
	SortOrder    string                  `form:"sortOrder" validate:"oneof=asc desc"`
}

func (q *scholarshipQuery) Defaults() {
	q.Pagination.Defaults()
	q.SortBy = types.SortByCreatedAt
	q.SortOrder = "desc"
}

func (q scholarshipQuery) filter() types.ScholarshipFilter {
	return types.ScholarshipFilter{
		Search:       q.Search,
		Status:       q.Status,
		Country:      q.Country,
		Level:        q.Level,
		Type:         q.Type,
		FieldOfStudy: q.FieldOfStudy,
		Featured:     q.Featured,
		SortBy:       q.SortBy,
		Descending:   q.SortOrder == "desc",
		Offset:       q.Offset(),
		Limit:        q.Limit,
	}
}

// createScholarshipRequest accepts the legacy deadline field as an alias of
// applicationDeadLine.
type createScholarshipRequest struct {
	Title               string                     `json:"title" validate:"required,min=1,max=300"`
	Provider            string                     `json:"provider" validate:"required,min=1,max=200"`
	Country             string                     `json:"country" validate:"required,min=1,max=200"`
	ImageURL            *string                    `json:"imageUrl" validate:"omitempty,max=20000"`
	Level               string                     `json:"level" validate:"required,min=1,max=100"`
	Status              types.ScholarshipStatus    `json:"status" validate:"omitempty,oneof=OPEN CLOSED UPCOMING DRAFT"`
	Duration            *string                    `json:"duration"`
	TuitionWaiver       *string                    `json:"tuitionWaiver"`
	MonthlyStipend      *string                    `json:"monthlyStipend"`
	ApplicationFee      *string                    `json:"applicationFee"`
	FlightTicket        *string                    `json:"flightTicket"`
	MaxAge              *int                       `json:"maxAge"`
	OpenDate            types.Optional[types.Date] `json:"openDate"`
	ApplicationDeadline types.Optional[types.Date] `json:"applicationDeadLine"`
	Deadline            types.Optional[types.Date] `json:"deadline"`
	Description         *string                    `json:"description"`
	Value               *string                    `json:"value"`
	FieldOfStudy        string                     `json:"fieldOfStudy" validate:"required,min=1"`
	Type                types.ScholarshipType      `json:"type" validate:"oneof=GOVERNMENT UNIVERSITY PRIVATE NGO"`
	Eligibility         json.RawMessage            `json:"eligibility"`
	Benefits            json.RawMessage            `json:"benefits"`
	Requirements        json.RawMessage            `json:"requirements"`
	Timeline            json.RawMessage            `json:"timeline"`
	Featured            bool                       `json:"featured"`
}

func (r *createScholarshipRequest) Defaults() {
	r.Type = types.ScholarshipGovernment
}

func (r createScholarshipRequest) scholarship(createdBy string) types.Scholarship {
	status := r.Status
	if status == "" {
		status = types.ScholarshipDraft
	}
	return types.Scholarship{
		Title:               r.Title,
		Provider:            r.Provider,
		Country:             r.Country,
		ImageURL:            r.ImageURL,
		Level:               r.Level,
		Status:              status,
		Duration:            r.Duration,
		TuitionWaiver:       r.TuitionWaiver,
		MonthlyStipend:      r.MonthlyStipend,
		ApplicationFee:      r.ApplicationFee,
		FlightTicket:        r.FlightTicket,
		MaxAge:              r.MaxAge,
		OpenDate:            types.OptionalTime(r.OpenDate).Ptr(),
		ApplicationDeadline: canonicalDeadline(r.ApplicationDeadline, r.Deadline).Ptr(),
		Description:         r.Description,
		Value:               r.Value,
		FieldOfStudy:        r.FieldOfStudy,
		Type:                r.Type,
		Eligibility:         r.Eligibility,
		Benefits:            r.Benefits,
		Requirements:        r.Requirements,
		Timeline:            r.Timeline,
		Featured:            r.Featured,
		CreatedByID:         &createdBy,
	}
}

type updateScholarshipRequest struct {
	Title               *string                         `json:"title" validate:"omitempty,min=1,max=300"`
	Provider            *string                         `json:"provider" validate:"omitempty,min=1,max=200"`
	Country             *string                         `json:"country" validate:"omitempty,min=1,max=200"`
	ImageURL            types.Optional[string]          `json:"imageUrl" validate:"omitempty,max=20000"`
	Level               *string                         `json:"level" validate:"omitempty,min=1,max=100"`
	Status              *types.ScholarshipStatus        `json:"status" validate:"omitempty,oneof=OPEN CLOSED UPCOMING DRAFT"`
	Duration            types.Optional[string]          `json:"duration"`
	TuitionWaiver       types.Optional[string]          `json:"tuitionWaiver"`
	MonthlyStipend      types.Optional[string]          `json:"monthlyStipend"`
	ApplicationFee      types.Optional[string]          `json:"applicationFee"`
	FlightTicket        types.Optional[string]          `json:"flightTicket"`
	MaxAge              types.Optional[int]             `json:"maxAge"`
	OpenDate            types.Optional[types.Date]      `json:"openDate"`
	ApplicationDeadline types.Optional[types.Date]      `json:"applicationDeadLine"`
	Deadline            types.Optional[types.Date]      `json:"deadline"`
	Description         types.Optional[string]          `json:"description"`
	Value               types.Optional[string]          `json:"value"`
	FieldOfStudy        *string                         `json:"fieldOfStudy" validate:"omitempty,min=1"`
	Type                *types.ScholarshipType          `json:"type" validate:"omitempty,oneof=GOVERNMENT UNIVERSITY PRIVATE NGO"`
	Eligibility         types.Optional[json.RawMessage] `json:"eligibility"`
	Benefits            types.Optional[json.RawMessage] `json:"benefits"`
	Requirements        types.Optional[json.RawMessage] `json:"requirements"`
	Timeline            types.Optional[json.RawMessage] `json:"timeline"`
	Featured            *bool                           `json:"featured"`
}

func (r updateScholarshipRequest) changes() types.ScholarshipChanges {
	return types.ScholarshipChanges{
		Title:               r.Title,
		Provider:            r.Provider,
		Country:             r.Country,
		ImageURL:            r.ImageURL,
		Level:               r.Level,
		Status:              r.Status,
		Duration:            r.Duration,
		TuitionWaiver:       r.TuitionWaiver,
		MonthlyStipend:      r.MonthlyStipend,
		ApplicationFee:      r.ApplicationFee,
		FlightTicket:        r.FlightTicket,
		MaxAge:              r.MaxAge,
		OpenDate:            types.OptionalTime(r.OpenDate),
		ApplicationDeadline: canonicalDeadline(r.ApplicationDeadline, r.Deadline),
		Description:         r.Description,
		Value:               r.Value,
		FieldOfStudy:        r.FieldOfStudy,
		Type:                r.Type,
		Eligibility:         r.Eligibility,
		Benefits:            r.Benefits,
		Requirements:        r.Requirements,
		Timeline:            r.Timeline,
		Featured:            r.Featured,
	}
}

// canonicalDeadline uses the legacy field only when applicationDeadLine is
// absent from the request.
func canonicalDeadline(canonical, legacy types.Optional[types.Date]) types.Optional[time.Time] {
	if canonical.Set {
		return types.OptionalTime(canonical)
	}
	return types.OptionalTime(legacy)
}

// ScholarshipHandler serves the public catalogue.
type ScholarshipHandler struct {
	scholarships *services.ScholarshipService
}

func NewScholarshipHandler(scholarships *services.ScholarshipService) *ScholarshipHandler {
	return &ScholarshipHandler{scholarships: scholarships}
}

// ScholarshipRouter registers catalogue routes on the given router.
func ScholarshipRouter(r chi.Router, b *pipeline.Builder, scholarships *services.ScholarshipService) {
	h := NewScholarshipHandler(scholarships)
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/", Auth: pipeline.OptionalAuth, Query: pipeline.SchemaOf[scholarshipQuery](), Handle: h.List},
		{Method: http.MethodGet, Pattern: "/featured", Handle: h.Featured},
		{Method: http.MethodGet, Pattern: "/{id}", Auth: pipeline.OptionalAuth, Params: pipeline.SchemaOf[pipeline.IDParam](), Handle: h.Get},
	})
}

func (h *ScholarshipHandler) List(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	q := pipeline.Query[scholarshipQuery](c)
	items, total, err := h.scholarships.List(ctx, q.filter(), c.IsAdmin())
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Page(items, q.Meta(total)), nil
}

func (h *ScholarshipHandler) Featured(ctx context.Context, _ pipeline.Call) (pipeline.Result, error) {
	items, err := h.scholarships.Featured(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(items), nil
}

func (h *ScholarshipHandler) Get(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	scholarship, err := h.scholarships.Get(ctx, params.ID, c.IsAdmin())
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(scholarship), nil
}
