// Package pipeline runs every API request through an explicit, ordered list
// of stages (authenticate, authorize, validate) before the route handler,
// and renders all outcomes in the response envelope.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/scholaraid/apiserver/types"
)

// Identity is the caller resolved by authentication.
type Identity struct {
	// UserID is the profile id, or the provider subject when no profile
	// exists yet.
	UserID string
	AuthID string
	Email  string
	Role   types.Role
	// Token is the bearer token the identity was resolved from.
	Token string
}

// Call is the per-request value threaded through the stages. Stages return
// an updated copy; the *http.Request is never mutated.
type Call struct {
	Request  *http.Request
	Identity *Identity

	params any
	query  any
	body   any
}

// Authenticated reports whether a caller identity is attached.
func (c Call) Authenticated() bool {
	return c.Identity != nil
}

// IsAdmin reports whether the caller holds an administrative role.
func (c Call) IsAdmin() bool {
	return c.Identity != nil && Admin.allows(c.Identity.Role)
}

// Stage inspects a call and either returns the call to continue with or an
// error. A *Halt error is written to the client as-is; any other error is
// handed to the ErrorHandler.
type Stage func(ctx context.Context, c Call) (Call, error)

// Handler is the terminal step of a chain.
type Handler func(ctx context.Context, c Call) (Result, error)

// Halt short-circuits a request with an explicit status and message.
type Halt struct {
	Status  int
	Message string
	Details any
}

func (h *Halt) Error() string {
	return fmt.Sprintf("%d %s", h.Status, h.Message)
}

// Fail constructs a Halt.
func Fail(status int, message string) *Halt {
	return &Halt{Status: status, Message: message}
}

func BadRequest(message string) *Halt   { return Fail(http.StatusBadRequest, message) }
func Unauthorized(message string) *Halt { return Fail(http.StatusUnauthorized, message) }
func Forbidden(message string) *Halt    { return Fail(http.StatusForbidden, message) }
func NotFound(message string) *Halt     { return Fail(http.StatusNotFound, message) }
func Conflict(message string) *Halt     { return Fail(http.StatusConflict, message) }

// Chain is an ordered list of stages ending in a handler.
type Chain struct {
	stages []Stage
	handle Handler
	errors *ErrorHandler
}

// NewChain composes stages, run in the given order, in front of handle.
func NewChain(errs *ErrorHandler, handle Handler, stages ...Stage) *Chain {
	return &Chain{stages: stages, handle: handle, errors: errs}
}

func (ch *Chain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			ch.errors.Handle(w, r, &panicError{value: rec, stack: debug.Stack()})
		}
	}()

	res, err := ch.Run(r.Context(), Call{Request: r})
	if err != nil {
		ch.fail(w, r, err)
		return
	}
	writeResult(w, res)
}

// Run executes the stages and the handler without writing a response.
func (ch *Chain) Run(ctx context.Context, c Call) (Result, error) {
	for _, stage := range ch.stages {
		next, err := stage(ctx, c)
		if err != nil {
			return Result{}, err
		}
		c = next
	}
	return ch.handle(ctx, c)
}

func (ch *Chain) fail(w http.ResponseWriter, r *http.Request, err error) {
	var halt *Halt
	if errors.As(err, &halt) {
		WriteJSON(w, halt.Status, Envelope{Success: false, Error: halt.Message, Details: halt.Details})
		return
	}
	ch.errors.Handle(w, r, err)
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) StackTrace() string {
	return string(p.stack)
}
