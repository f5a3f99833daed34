package types

import "time"

// Role is the authorization level of a profile.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ProfileStatus controls whether a profile may use authenticated routes.
type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "ACTIVE"
	ProfileSuspended ProfileStatus = "SUSPENDED"
)

// EducationLevel is the highest level of study a student is enrolled in.
type EducationLevel string

const (
	EducationHighSchool EducationLevel = "HIGH_SCHOOL"
	EducationBachelors  EducationLevel = "BACHELORS"
	EducationMasters    EducationLevel = "MASTERS"
	EducationPhD        EducationLevel = "PHD"
)

// Profile is the application-side record of an identity-provider user.
type Profile struct {
	// ID is the internal profile identifier.
	ID string `json:"id"`

	// AuthID is the subject issued by the identity provider. Unique.
	AuthID string `json:"-"`

	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	AvatarURL          *string         `json:"avatarUrl"`
	Nationality        *string         `json:"nationality"`
	ResidingCountry    *string         `json:"residingCountry"`
	DateOfBirth        *time.Time      `json:"dateOfBirth"`
	CurrentInstitution *string         `json:"currentInstitution"`
	EducationLevel     *EducationLevel `json:"educationLevel"`
	Interests          []string        `json:"interests"`
	PersonalStatement  *string         `json:"personalStatement"`
	StudyPlan          *string         `json:"studyPlan"`
	Achievements       []string        `json:"achievements"`
	Highlights         []string        `json:"highlights"`
	Organizations      []string        `json:"organizations"`

	Role                Role          `json:"role"`
	Status              ProfileStatus `json:"status"`
	OnboardingCompleted bool          `json:"onboardingCompleted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Count is populated only by queries that aggregate related rows.
	Count *ProfileCount `json:"_count,omitempty"`
}

// ProfileCount aggregates rows owned by a profile. Notifications counts
// unread notifications only.
type ProfileCount struct {
	Applications  int `json:"applications"`
	Documents     int `json:"documents"`
	Notifications int `json:"notifications"`
}

// AdminUser is the row shape of the admin user listing.
type AdminUser struct {
	ID                  string        `json:"id"`
	Email               string        `json:"email"`
	FirstName           string        `json:"firstName"`
	LastName            string        `json:"lastName"`
	Role                Role          `json:"role"`
	Status              ProfileStatus `json:"status"`
	OnboardingCompleted bool          `json:"onboardingCompleted"`
	CreatedAt           time.Time     `json:"createdAt"`
	Count               struct {
		Applications int `json:"applications"`
	} `json:"_count"`
}

// PublicProfile is the subset of a profile visible to anyone.
type PublicProfile struct {
	ID                 string          `json:"id"`
	FirstName          string          `json:"firstName"`
	LastName           string          `json:"lastName"`
	AvatarURL          *string         `json:"avatarUrl"`
	CurrentInstitution *string         `json:"currentInstitution"`
	EducationLevel     *EducationLevel `json:"educationLevel"`
	Interests          []string        `json:"interests"`
	Achievements       []string        `json:"achievements"`
	Highlights         []string        `json:"highlights"`
	Organizations      []string        `json:"organizations"`
}

// Public strips private fields from the profile.
func (p Profile) Public() PublicProfile {
	return PublicProfile{
		ID:                 p.ID,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		AvatarURL:          p.AvatarURL,
		CurrentInstitution: p.CurrentInstitution,
		EducationLevel:     p.EducationLevel,
		Interests:          p.Interests,
		Achievements:       p.Achievements,
		Highlights:         p.Highlights,
		Organizations:      p.Organizations,
	}
}

// UserSummary is the profile projection embedded in admin listings.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// ProfileChanges is a partial update. Nil pointers leave a column untouched;
// Optional fields distinguish "absent" from "set to null".
type ProfileChanges struct {
	FirstName           *string
	LastName            *string
	AvatarURL           Optional[string]
	Nationality         Optional[string]
	ResidingCountry     Optional[string]
	DateOfBirth         Optional[time.Time]
	CurrentInstitution  Optional[string]
	EducationLevel      Optional[EducationLevel]
	Interests           *[]string
	PersonalStatement   Optional[string]
	StudyPlan           Optional[string]
	Achievements        *[]string
	Highlights          *[]string
	Organizations       *[]string
	OnboardingCompleted *bool
}

// ProfileFilter narrows admin user listings.
type ProfileFilter struct {
	Search string
	Role   Role
	Status ProfileStatus
	Offset int
	Limit  int
}
