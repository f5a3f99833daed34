package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/types"
)

type applicationQuery struct {
	pipeline.Pagination
	Status types.ApplicationStatus `form:"status" validate:"omitempty,oneof=DRAFT PENDING_DOCUMENTS UNDER_REVIEW APPROVED REJECTED WITHDRAWN"`
}

type createApplicationRequest struct {
	ScholarshipID string `json:"scholarshipId" validate:"required,uuid"`
}

type updateApplicationRequest struct {
	Essays *[]types.Essay           `json:"essays" validate:"omitempty,dive"`
	Status *types.ApplicationStatus `json:"status" validate:"omitempty,oneof=DRAFT PENDING_DOCUMENTS UNDER_REVIEW WITHDRAWN"`
}

// ApplicationHandler serves the caller's own applications.
type ApplicationHandler struct {
	applications *services.ApplicationService
}

func NewApplicationHandler(applications *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// ApplicationRouter registers application routes on the given router. Every
// route requires authentication and is scoped to the caller.
func ApplicationRouter(r chi.Router, b *pipeline.Builder, applications *services.ApplicationService, documents *services.DocumentService) {
	h := NewApplicationHandler(applications)
	id := pipeline.SchemaOf[pipeline.IDParam]()
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/", Auth: pipeline.RequiredAuth, Query: pipeline.SchemaOf[applicationQuery](), Handle: h.List},
		{Method: http.MethodPost, Pattern: "/", Auth: pipeline.RequiredAuth, Body: pipeline.SchemaOf[createApplicationRequest](), Handle: h.Create},
		{Method: http.MethodGet, Pattern: "/{id}", Auth: pipeline.RequiredAuth, Params: id, Handle: h.Get},
		{Method: http.MethodPatch, Pattern: "/{id}", Auth: pipeline.RequiredAuth, Params: id, Body: pipeline.SchemaOf[updateApplicationRequest](), Handle: h.Update},
		{Method: http.MethodDelete, Pattern: "/{id}", Auth: pipeline.RequiredAuth, Params: id, Handle: h.Delete},
	})
	r.Route("/{id}/documents", func(r chi.Router) {
		DocumentRouter(r, b, documents)
	})
}

func (h *ApplicationHandler) List(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	q := pipeline.Query[applicationQuery](c)
	items, total, err := h.applications.List(ctx, types.ApplicationFilter{
		UserID: c.Identity.UserID,
		Status: q.Status,
		Offset: q.Offset(),
		Limit:  q.Limit,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Page(items, q.Meta(total)), nil
}

func (h *ApplicationHandler) Create(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[createApplicationRequest](c)
	application, err := h.applications.Create(ctx, c.Identity.UserID, req.ScholarshipID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Created(application), nil
}

func (h *ApplicationHandler) Get(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	detail, err := h.applications.Get(ctx, c.Identity.UserID, params.ID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(detail), nil
}

func (h *ApplicationHandler) Update(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	req := pipeline.Body[updateApplicationRequest](c)
	application, err := h.applications.Update(ctx, c.Identity.UserID, params.ID, services.ApplicationUpdate{
		Essays: req.Essays,
		Status: req.Status,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(application), nil
}

func (h *ApplicationHandler) Delete(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	if err := h.applications.Delete(ctx, c.Identity.UserID, params.ID); err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(pipeline.Message{Message: "Application deleted"}), nil
}
