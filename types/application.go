package types

import "time"

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	ApplicationDraft            ApplicationStatus = "DRAFT"
	ApplicationPendingDocuments ApplicationStatus = "PENDING_DOCUMENTS"
	ApplicationUnderReview      ApplicationStatus = "UNDER_REVIEW"
	ApplicationApproved         ApplicationStatus = "APPROVED"
	ApplicationRejected         ApplicationStatus = "REJECTED"
	ApplicationWithdrawn        ApplicationStatus = "WITHDRAWN"
)

// AllApplicationStatuses lists every status in lifecycle order.
var AllApplicationStatuses = []ApplicationStatus{
	ApplicationDraft,
	ApplicationPendingDocuments,
	ApplicationUnderReview,
	ApplicationApproved,
	ApplicationRejected,
	ApplicationWithdrawn,
}

// Finalized reports whether the status is terminal.
func (s ApplicationStatus) Finalized() bool {
	return s == ApplicationApproved || s == ApplicationRejected
}

// Essay is a titled free-text answer attached to an application.
type Essay struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

// Application is a student's application to one scholarship. A student has
// at most one application per scholarship.
type Application struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	ScholarshipID string            `json:"scholarshipId"`
	Status        ApplicationStatus `json:"status"`
	Essays        []Essay           `json:"essays"`
	Score         *int              `json:"score"`
	AdminNotes    *string           `json:"adminNotes"`
	SubmittedAt   *time.Time        `json:"submittedAt"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`

	// Populated by listing queries.
	Scholarship *ScholarshipSummary `json:"scholarship,omitempty"`
	User        *UserSummary        `json:"user,omitempty"`
	Documents   []Document          `json:"documents,omitempty"`
	Count       *ApplicationCount   `json:"_count,omitempty"`
}

// ApplicationCount aggregates rows referencing an application.
type ApplicationCount struct {
	Documents int `json:"documents"`
}

// ApplicationChanges is an applicant-side update.
type ApplicationChanges struct {
	Essays      *[]Essay
	Status      *ApplicationStatus
	SubmittedAt *time.Time
}

// ApplicationReview is an admin decision on an application.
type ApplicationReview struct {
	Status     ApplicationStatus
	Score      Optional[int]
	AdminNotes Optional[string]
}

// ApplicationFilter narrows application listings. UserID scopes to one
// applicant when set. Listings are ordered by last update unless
// NewestFirst orders them by creation.
type ApplicationFilter struct {
	UserID        string
	ScholarshipID string
	Status        ApplicationStatus
	NewestFirst   bool
	Offset        int
	Limit         int
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalUsers           int                       `json:"totalUsers"`
	TotalScholarships    int                       `json:"totalScholarships"`
	TotalApplications    int                       `json:"totalApplications"`
	ApplicationsByStatus map[ApplicationStatus]int `json:"applicationsByStatus"`
}

// Dashboard bundles the overview with the latest activity.
type Dashboard struct {
	Stats              DashboardStats `json:"stats"`
	RecentApplications []Application  `json:"recentApplications"`
}

// ApplicationDetail is a single application with its full scholarship and
// uploaded documents.
type ApplicationDetail struct {
	Application
	Scholarship *Scholarship `json:"scholarship"`
	Documents   []Document   `json:"documents"`
}
