package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	apperrors "github.com/maruel/bgstudio/internal/errors"
)

// UserRole is what a member offers to the community.
type UserRole string

const (
	// RoleDesigner designs games.
	RoleDesigner UserRole = "designer"
	// RoleFreelancer offers art, writing or development.
	RoleFreelancer UserRole = "freelancer"
	// RoleServiceProvider offers manufacturing, printing or marketing.
	RoleServiceProvider UserRole = "service_provider"
	// RolePublisher publishes games.
	RolePublisher UserRole = "publisher"
)

// User is a member profile.
type User struct {
	ID           UserID     `json:"id" jsonschema:"description=User identifier"`
	DisplayName  string     `json:"displayName" jsonschema:"description=Name shown on the profile"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash,omitempty" jsonschema:"description=bcrypt hash when password verification is enabled"`
	Bio          string     `json:"bio"`
	Location     string     `json:"location,omitempty"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	Website      string     `json:"website,omitempty"`
	Skills       []string   `json:"skills"`
	Interests    []string   `json:"interests"`
	Roles        []UserRole `json:"roles"`
	JoinedAt     time.Time  `json:"joinedAt"`
	Extra        Extra      `json:"-"`
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	c := *u
	c.Extra = maps.Clone(u.Extra)
	c.Skills = slices.Clone(u.Skills)
	c.Interests = slices.Clone(u.Interests)
	c.Roles = slices.Clone(u.Roles)
	return &c
}

// GetID implements jsonldb.Row.
func (u *User) GetID() string { return string(u.ID) }

// Validate implements jsonldb.Row.
func (u *User) Validate() error {
	if u.ID == "" {
		return apperrors.MissingField("id")
	}
	if strings.TrimSpace(u.Email) == "" {
		return apperrors.MissingField("email")
	}
	return nil
}

// Registration is the data supplied when a user signs up.
type Registration struct {
	DisplayName string
	Email       string
	Password    string
	Bio         string
	Location    string
	Skills      []string
	Interests   []string
	Roles       []UserRole
}

// UserPatch holds the fields to change on a profile. Nil fields are left
// untouched.
type UserPatch struct {
	DisplayName *string     `json:"displayName,omitempty"`
	Bio         *string     `json:"bio,omitempty"`
	Location    *string     `json:"location,omitempty"`
	AvatarURL   *string     `json:"avatarUrl,omitempty"`
	Website     *string     `json:"website,omitempty"`
	Skills      *[]string   `json:"skills,omitempty"`
	Interests   *[]string   `json:"interests,omitempty"`
	Roles       *[]UserRole `json:"roles,omitempty"`
}

// Apply merges the patch into u.
func (p *UserPatch) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Website != nil {
		u.Website = *p.Website
	}
	if p.Skills != nil {
		u.Skills = slices.Clone(*p.Skills)
	}
	if p.Interests != nil {
		u.Interests = slices.Clone(*p.Interests)
	}
	if p.Roles != nil {
		u.Roles = slices.Clone(*p.Roles)
	}
}
