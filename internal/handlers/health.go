package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
)

// Health is the liveness payload.
type Health struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// HealthRouter registers GET /health.
func HealthRouter(r chi.Router, b *pipeline.Builder, env string) {
	b.Mount(r, []pipeline.Route{{
		Method:  http.MethodGet,
		Pattern: "/health",
		Handle: func(context.Context, pipeline.Call) (pipeline.Result, error) {
			return pipeline.OK(Health{Status: "ok", Timestamp: time.Now().UTC(), Environment: env}), nil
		},
	}})
}
