package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/types"
)

type userQuery struct {
	pipeline.Pagination
	Search string              `form:"search"`
	Role   types.Role          `form:"role" validate:"omitempty,oneof=STUDENT ADMIN SUPER_ADMIN"`
	Status types.ProfileStatus `form:"status" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
}

type adminApplicationQuery struct {
	pipeline.Pagination
	Status        types.ApplicationStatus `form:"status" validate:"omitempty,oneof=DRAFT PENDING_DOCUMENTS UNDER_REVIEW APPROVED REJECTED WITHDRAWN"`
	ScholarshipID string                  `form:"scholarshipId" validate:"omitempty,uuid"`
}

type roleRequest struct {
	Role types.Role `json:"role" validate:"required,oneof=STUDENT ADMIN SUPER_ADMIN"`
}

type statusRequest struct {
	Status types.ProfileStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}

type reviewRequest struct {
	Status     types.ApplicationStatus `json:"status" validate:"required,oneof=UNDER_REVIEW APPROVED REJECTED"`
	Score      types.Optional[int]     `json:"score" validate:"omitempty,min=0,max=100"`
	AdminNotes types.Optional[string]  `json:"adminNotes" validate:"omitempty,max=5000"`
}

// UserRole is the response of a role change.
type UserRole struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

// UserStatus is the response of a status change.
type UserStatus struct {
	ID     string              `json:"id"`
	Email  string              `json:"email"`
	Status types.ProfileStatus `json:"status"`
}

// AdminHandler serves the back office. Every route requires an admin.
type AdminHandler struct {
	admin        *services.AdminService
	scholarships *services.ScholarshipService
	applications *services.ApplicationService
}

func NewAdminHandler(admin *services.AdminService, scholarships *services.ScholarshipService, applications *services.ApplicationService) *AdminHandler {
	return &AdminHandler{admin: admin, scholarships: scholarships, applications: applications}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(r chi.Router, b *pipeline.Builder, admin *services.AdminService, scholarships *services.ScholarshipService, applications *services.ApplicationService) {
	h := NewAdminHandler(admin, scholarships, applications)
	id := pipeline.SchemaOf[pipeline.IDParam]()
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/dashboard", Access: pipeline.Admin, Handle: h.Dashboard},

		{Method: http.MethodPost, Pattern: "/scholarships", Access: pipeline.Admin, Body: pipeline.SchemaOf[createScholarshipRequest](), Handle: h.CreateScholarship},
		{Method: http.MethodPatch, Pattern: "/scholarships/{id}", Access: pipeline.Admin, Params: id, Body: pipeline.SchemaOf[updateScholarshipRequest](), Handle: h.UpdateScholarship},
		{Method: http.MethodDelete, Pattern: "/scholarships/{id}", Access: pipeline.Admin, Params: id, Handle: h.DeleteScholarship},

		{Method: http.MethodGet, Pattern: "/users", Access: pipeline.Admin, Query: pipeline.SchemaOf[userQuery](), Handle: h.ListUsers},
		{Method: http.MethodPatch, Pattern: "/users/{id}/role", Access: pipeline.SuperAdmin, Params: id, Body: pipeline.SchemaOf[roleRequest](), Handle: h.SetRole},
		{Method: http.MethodPatch, Pattern: "/users/{id}/status", Access: pipeline.Admin, Params: id, Body: pipeline.SchemaOf[statusRequest](), Handle: h.SetStatus},

		{Method: http.MethodGet, Pattern: "/applications", Access: pipeline.Admin, Query: pipeline.SchemaOf[adminApplicationQuery](), Handle: h.ListApplications},
		{Method: http.MethodPatch, Pattern: "/applications/{id}/review", Access: pipeline.Admin, Params: id, Body: pipeline.SchemaOf[reviewRequest](), Handle: h.Review},
	})
}

func (h *AdminHandler) Dashboard(ctx context.Context, _ pipeline.Call) (pipeline.Result, error) {
	dashboard, err := h.admin.Dashboard(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(dashboard), nil
}

func (h *AdminHandler) CreateScholarship(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[createScholarshipRequest](c)
	scholarship, err := h.scholarships.Create(ctx, req.scholarship(c.Identity.UserID))
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Created(scholarship), nil
}

func (h *AdminHandler) UpdateScholarship(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	req := pipeline.Body[updateScholarshipRequest](c)
	scholarship, err := h.scholarships.Update(ctx, params.ID, req.changes())
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(scholarship), nil
}

func (h *AdminHandler) DeleteScholarship(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	if err := h.scholarships.Delete(ctx, params.ID); err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(pipeline.Message{Message: "Scholarship deleted"}), nil
}

func (h *AdminHandler) ListUsers(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	q := pipeline.Query[userQuery](c)
	users, total, err := h.admin.ListUsers(ctx, types.ProfileFilter{
		Search: q.Search,
		Role:   q.Role,
		Status: q.Status,
		Offset: q.Offset(),
		Limit:  q.Limit,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Page(users, q.Meta(total)), nil
}

func (h *AdminHandler) SetRole(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	req := pipeline.Body[roleRequest](c)
	profile, err := h.admin.SetRole(ctx, params.ID, req.Role)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(UserRole{ID: profile.ID, Email: profile.Email, Role: profile.Role}), nil
}

func (h *AdminHandler) SetStatus(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	req := pipeline.Body[statusRequest](c)
	profile, err := h.admin.SetStatus(ctx, params.ID, req.Status)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(UserStatus{ID: profile.ID, Email: profile.Email, Status: profile.Status}), nil
}

func (h *AdminHandler) ListApplications(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	q := pipeline.Query[adminApplicationQuery](c)
	items, total, err := h.applications.List(ctx, types.ApplicationFilter{
		ScholarshipID: q.ScholarshipID,
		Status:        q.Status,
		Offset:        q.Offset(),
		Limit:         q.Limit,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Page(items, q.Meta(total)), nil
}

func (h *AdminHandler) Review(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	req := pipeline.Body[reviewRequest](c)
	application, err := h.applications.Review(ctx, params.ID, types.ApplicationReview{
		Status:     req.Status,
		Score:      req.Score,
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(application), nil
}
