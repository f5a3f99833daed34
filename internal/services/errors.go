package services

import "net/http"

// Error is a use-case failure with a client-facing message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string   { return e.Message }
func (e *Error) StatusCode() int { return e.Status }

func badRequest(message string) *Error { return &Error{Status: http.StatusBadRequest, Message: message} }
func notFound(message string) *Error   { return &Error{Status: http.StatusNotFound, Message: message} }

var (
	ErrInvalidLogin         = &Error{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	ErrInvalidRefreshToken  = &Error{Status: http.StatusUnauthorized, Message: "Invalid refresh token"}
	ErrInvalidResetToken    = &Error{Status: http.StatusUnauthorized, Message: "Invalid or expired token"}
	ErrProfileNotFound      = notFound("Profile not found")
	ErrUserNotFound         = notFound("User not found")
	ErrScholarshipNotFound  = notFound("Scholarship not found")
	ErrApplicationNotFound  = notFound("Application not found")
	ErrNotificationNotFound = notFound("Notification not found")
	ErrDocumentNotFound     = notFound("Document not found")

	ErrNotAccepting       = badRequest("This scholarship is not currently accepting applications")
	ErrDeadlinePassed     = badRequest("Application deadline has passed")
	ErrAlreadyApplied     = &Error{Status: http.StatusConflict, Message: "You have already applied to this scholarship"}
	ErrFinalized          = badRequest("Cannot modify a finalized application")
	ErrDeleteUnderReview  = badRequest("Cannot delete an application under review. Withdraw it first.")
	ErrStorageDisabled    = &Error{Status: http.StatusServiceUnavailable, Message: "Document storage is not configured"}
	ErrEmptyDocument      = badRequest("Document file is empty")
	ErrFinalizedDocuments = badRequest("Cannot upload documents to a finalized application")
)
