package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/types"
)

type updateProfileRequest struct {
	FirstName          *string                    `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName           *string                    `json:"lastName" validate:"omitempty,min=1,max=100"`
	AvatarURL          types.Optional[string]     `json:"avatarUrl" validate:"omitempty,url"`
	Nationality        types.Optional[string]     `json:"nationality"`
	ResidingCountry    types.Optional[string]     `json:"residingCountry"`
	DateOfBirth        types.Optional[types.Date] `json:"dateOfBirth"`
	CurrentInstitution types.Optional[string]     `json:"currentInstitution"`
	EducationLevel     types.Optional[string]     `json:"educationLevel" validate:"omitempty,oneof=HIGH_SCHOOL BACHELORS MASTERS PHD"`
	Interests          *[]string                  `json:"interests"`
	PersonalStatement  types.Optional[string]     `json:"personalStatement" validate:"omitempty,max=10000"`
	StudyPlan          types.Optional[string]     `json:"studyPlan" validate:"omitempty,max=10000"`
	Achievements       *[]string                  `json:"achievements"`
	Highlights         *[]string                  `json:"highlights"`
	Organizations      *[]string                  `json:"organizations"`
}

func (r updateProfileRequest) changes() types.ProfileChanges {
	return types.ProfileChanges{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		AvatarURL:          r.AvatarURL,
		Nationality:        r.Nationality,
		ResidingCountry:    r.ResidingCountry,
		DateOfBirth:        types.OptionalTime(r.DateOfBirth),
		CurrentInstitution: r.CurrentInstitution,
		EducationLevel: types.Optional[types.EducationLevel]{
			Set:   r.EducationLevel.Set,
			Valid: r.EducationLevel.Valid,
			Value: types.EducationLevel(r.EducationLevel.Value),
		},
		Interests:         r.Interests,
		PersonalStatement: r.PersonalStatement,
		StudyPlan:         r.StudyPlan,
		Achievements:      r.Achievements,
		Highlights:        r.Highlights,
		Organizations:     r.Organizations,
	}
}

type onboardingRequest struct {
	Nationality        string                     `json:"nationality" validate:"required,min=1"`
	ResidingCountry    string                     `json:"residingCountry" validate:"required,min=1"`
	DateOfBirth        types.Optional[types.Date] `json:"dateOfBirth"`
	CurrentInstitution *string                    `json:"currentInstitution"`
	EducationLevel     types.EducationLevel       `json:"educationLevel" validate:"required,oneof=HIGH_SCHOOL BACHELORS MASTERS PHD"`
	Interests          []string                   `json:"interests" validate:"required,min=1"`
}

func (onboardingRequest) FieldMessages() map[string]string {
	return map[string]string{
		"interests.required": "Select at least one interest",
		"interests.min":      "Select at least one interest",
	}
}

// ProfileHandler serves profile endpoints.
type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// ProfileRouter registers profile routes on the given router.
func ProfileRouter(r chi.Router, b *pipeline.Builder, profiles *services.ProfileService) {
	h := NewProfileHandler(profiles)
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/me", Auth: pipeline.RequiredAuth, Handle: h.Me},
		{Method: http.MethodPatch, Pattern: "/me", Auth: pipeline.RequiredAuth, Body: pipeline.SchemaOf[updateProfileRequest](), Handle: h.Update},
		{Method: http.MethodPatch, Pattern: "/onboarding", Auth: pipeline.RequiredAuth, Body: pipeline.SchemaOf[onboardingRequest](), Handle: h.Onboarding},
		{Method: http.MethodGet, Pattern: "/{id}", Params: pipeline.SchemaOf[pipeline.IDParam](), Handle: h.Public},
	})
}

func (h *ProfileHandler) Me(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	profile, err := h.profiles.Me(ctx, c.Identity.UserID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(profile), nil
}

func (h *ProfileHandler) Update(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[updateProfileRequest](c)
	profile, err := h.profiles.Update(ctx, c.Identity.UserID, req.changes())
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(profile), nil
}

func (h *ProfileHandler) Onboarding(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[onboardingRequest](c)
	profile, err := h.profiles.CompleteOnboarding(ctx, c.Identity.UserID, services.Onboarding{
		Nationality:        req.Nationality,
		ResidingCountry:    req.ResidingCountry,
		DateOfBirth:        req.DateOfBirth,
		CurrentInstitution: req.CurrentInstitution,
		EducationLevel:     req.EducationLevel,
		Interests:          req.Interests,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(profile), nil
}

func (h *ProfileHandler) Public(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	profile, err := h.profiles.Public(ctx, params.ID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(profile), nil
}
