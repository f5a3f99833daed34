package pipeline

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta describes one page of a listing.
type Meta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	UnreadCount *int `json:"unreadCount,omitempty"`
}

// NewMeta computes totalPages as ceil(total/limit).
func NewMeta(page, limit, total int) *Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// Result is what a handler produces on success.
type Result struct {
	Status int
	Data   any
	Meta   *Meta
	// Raw, when set, writes the response itself instead of an envelope.
	Raw func(w http.ResponseWriter)
}

// OK wraps data in a 200 result.
func OK(data any) Result {
	return Result{Status: http.StatusOK, Data: data}
}

// Created wraps data in a 201 result.
func Created(data any) Result {
	return Result{Status: http.StatusCreated, Data: data}
}

// Page wraps a listing and its pagination metadata in a 200 result.
func Page(data any, meta *Meta) Result {
	return Result{Status: http.StatusOK, Data: data, Meta: meta}
}

// Message is the data payload of acknowledgement responses.
type Message struct {
	Message string `json:"message"`
}

// WriteJSON encodes value with the given status.
func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Error: message})
}

func writeResult(w http.ResponseWriter, res Result) {
	if res.Raw != nil {
		res.Raw(w)
		return
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	WriteJSON(w, status, Envelope{Success: true, Data: res.Data, Meta: res.Meta})
}
