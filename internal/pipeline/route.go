package pipeline

import (
	"github.com/go-chi/chi/v5"
)

// AuthMode selects the authentication stage of a route.
type AuthMode int

const (
	Public AuthMode = iota
	OptionalAuth
	RequiredAuth
)

// Route declares one endpoint and the stages in front of it.
type Route struct {
	Method  string
	Pattern string
	Auth    AuthMode
	Access  Access
	Params  Schema
	Query   Schema
	Body    Schema
	Handle  Handler
}

// Builder turns route declarations into chains.
type Builder struct {
	auth      *Authenticator
	validator *Validator
	errors    *ErrorHandler
}

func NewBuilder(auth *Authenticator, validator *Validator, errs *ErrorHandler) *Builder {
	return &Builder{auth: auth, validator: validator, errors: errs}
}

// Chain assembles the stages of rt in a fixed order: authentication,
// authorization, then params, query and body validation.
func (b *Builder) Chain(rt Route) *Chain {
	var stages []Stage

	mode := rt.Auth
	if rt.Access.Restricted() {
		mode = RequiredAuth
	}
	switch mode {
	case RequiredAuth:
		stages = append(stages, b.auth.Require)
	case OptionalAuth:
		stages = append(stages, b.auth.Optional)
	}
	if rt.Access.Restricted() {
		stages = append(stages, Authorize(rt.Access))
	}
	if rt.Params.defined() {
		stages = append(stages, b.validator.Params(rt.Params))
	}
	if rt.Query.defined() {
		stages = append(stages, b.validator.Query(rt.Query))
	}
	if rt.Body.defined() {
		stages = append(stages, b.validator.Body(rt.Body))
	}
	return NewChain(b.errors, rt.Handle, stages...)
}

// Mount registers routes on r.
func (b *Builder) Mount(r chi.Router, routes []Route) {
	for _, rt := range routes {
		r.Method(rt.Method, rt.Pattern, b.Chain(rt))
	}
}

// Validator exposes the builder's validator to handlers that validate
// non-JSON input themselves.
func (b *Builder) Validator() *Validator {
	return b.validator
}
