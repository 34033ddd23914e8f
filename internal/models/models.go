// Package models defines the entities persisted by the studio store.
//
// JSON field names are camelCase and must stay compatible with data already
// stored under the bgs_* keys.
package models

import (
	"maps"
	"slices"
	"strings"
	"time"

	apperrors "github.com/maruel/bgstudio/internal/errors"
)

// Storage keys. Each collection is one JSON array under its key.
const (
	KeyUsers         = "bgs_users"
	KeyCurrentUserID = "bgs_current_user_id"
	KeyProjects      = "bgs_projects"
	KeyJobs          = "bgs_jobs"
	KeyEvents        = "bgs_events"
	KeyGroups        = "bgs_groups"
	KeyListings      = "bgs_listings"
)

// Typed references between collections.
type (
	UserID    string
	ProjectID string
	JobID     string
	EventID   string
	GroupID   string
	ListingID string
)

// ProjectStatus is the development stage of a project.
type ProjectStatus string

const (
	// ProjectConcept is an idea without a playable prototype.
	ProjectConcept ProjectStatus = "concept"
	// ProjectPrototype has a playable prototype.
	ProjectPrototype ProjectStatus = "prototype"
	// ProjectPlaytesting is being playtested.
	ProjectPlaytesting ProjectStatus = "playtesting"
	// ProjectPublished is released.
	ProjectPublished ProjectStatus = "published"
)

// Project is a game in development.
type Project struct {
	ID          ProjectID     `json:"id" jsonschema:"description=Project identifier"`
	Title       string        `json:"title" jsonschema:"description=Project title"`
	Description string        `json:"description,omitempty"`
	CreatorID   UserID        `json:"creatorId" jsonschema:"description=Id of the user who created the project"`
	Status      ProjectStatus `json:"status,omitempty" jsonschema:"enum=concept,enum=prototype,enum=playtesting,enum=published"`
	Genre       string        `json:"genre,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	LookingFor  []string      `json:"lookingFor,omitempty" jsonschema:"description=Skills the creator is looking for"`
	CreatedAt   time.Time     `json:"createdAt"`
	Extra       Extra         `json:"-"`
}

// Clone returns a deep copy.
func (p *Project) Clone() *Project {
	c := *p
	c.Extra = maps.Clone(p.Extra)
	c.Tags = slices.Clone(p.Tags)
	c.LookingFor = slices.Clone(p.LookingFor)
	return &c
}

// GetID implements jsonldb.Row.
func (p *Project) GetID() string { return string(p.ID) }

// Validate implements jsonldb.Row.
func (p *Project) Validate() error {
	if p.ID == "" {
		return apperrors.MissingField("id")
	}
	if strings.TrimSpace(p.Title) == "" {
		return apperrors.MissingField("title")
	}
	if p.CreatorID == "" {
		return apperrors.MissingField("creatorId")
	}
	switch p.Status {
	case "", ProjectConcept, ProjectPrototype, ProjectPlaytesting, ProjectPublished:
	default:
		return apperrors.Validation("invalid project status").WithDetail("status", string(p.Status))
	}
	return nil
}

// Job is a paid or volunteer posting.
type Job struct {
	ID           JobID     `json:"id" jsonschema:"description=Job identifier"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PosterID     UserID    `json:"posterId" jsonschema:"description=Id of the user who posted the job"`
	JobType      string    `json:"jobType,omitempty" jsonschema:"description=e.g. illustration or playtesting"`
	Compensation string    `json:"compensation,omitempty"`
	Skills       []string  `json:"skills,omitempty"`
	Remote       bool      `json:"remote,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Extra        Extra     `json:"-"`
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	c := *j
	c.Extra = maps.Clone(j.Extra)
	c.Skills = slices.Clone(j.Skills)
	return &c
}

// GetID implements jsonldb.Row.
func (j *Job) GetID() string { return string(j.ID) }

// Validate implements jsonldb.Row.
func (j *Job) Validate() error {
	if j.ID == "" {
		return apperrors.MissingField("id")
	}
	if strings.TrimSpace(j.Title) == "" {
		return apperrors.MissingField("title")
	}
	if j.PosterID == "" {
		return apperrors.MissingField("posterId")
	}
	return nil
}

// Event is a convention, playtest session or meetup.
type Event struct {
	ID                  EventID   `json:"id" jsonschema:"description=Event identifier"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	OrganizerID         UserID    `json:"organizerId"`
	AssociatedProjectID ProjectID `json:"associatedProjectId,omitempty" jsonschema:"description=Optional project showcased at the event"`
	Location            string    `json:"location,omitempty"`
	Online              bool      `json:"online,omitempty"`
	StartsAt            time.Time `json:"startsAt,omitzero"`
	CreatedAt           time.Time `json:"createdAt"`
	Extra               Extra     `json:"-"`
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	c := *e
	c.Extra = maps.Clone(e.Extra)
	return &c
}

// GetID implements jsonldb.Row.
func (e *Event) GetID() string { return string(e.ID) }

// Validate implements jsonldb.Row.
func (e *Event) Validate() error {
	if e.ID == "" {
		return apperrors.MissingField("id")
	}
	if strings.TrimSpace(e.Title) == "" {
		return apperrors.MissingField("title")
	}
	if e.OrganizerID == "" {
		return apperrors.MissingField("organizerId")
	}
	return nil
}

// GroupRole is a member's role within a group.
type GroupRole string

const (
	// GroupOwner created the group.
	GroupOwner GroupRole = "owner"
	// GroupMember joined the group.
	GroupMember GroupRole = "member"
)

// Member is one user's membership in a group.
type Member struct {
	UserID   UserID    `json:"userId"`
	Role     GroupRole `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	Extra    Extra     `json:"-"`
}

// Group is a community of users.
type Group struct {
	ID          GroupID   `json:"id" jsonschema:"description=Group identifier"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatorID   UserID    `json:"creatorId"`
	Members     []Member  `json:"members"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Extra       Extra     `json:"-"`
}

// Clone returns a deep copy.
func (g *Group) Clone() *Group {
	c := *g
	c.Extra = maps.Clone(g.Extra)
	c.Members = slices.Clone(g.Members)
	for i := range c.Members {
		c.Members[i].Extra = maps.Clone(c.Members[i].Extra)
	}
	c.Tags = slices.Clone(g.Tags)
	return &c
}

// GetID implements jsonldb.Row.
func (g *Group) GetID() string { return string(g.ID) }

// Validate implements jsonldb.Row.
func (g *Group) Validate() error {
	if g.ID == "" {
		return apperrors.MissingField("id")
	}
	if strings.TrimSpace(g.Name) == "" {
		return apperrors.MissingField("name")
	}
	if g.CreatorID == "" {
		return apperrors.MissingField("creatorId")
	}
	seen := make(map[UserID]bool, len(g.Members))
	for _, m := range g.Members {
		if m.UserID == "" {
			return apperrors.MissingField("members.userId")
		}
		if seen[m.UserID] {
			return apperrors.Conflict("user is already a member").WithDetail("userId", string(m.UserID))
		}
		seen[m.UserID] = true
	}
	return nil
}

// IsMember reports whether id is a member of the group.
func (g *Group) IsMember(id UserID) bool {
	return slices.ContainsFunc(g.Members, func(m Member) bool { return m.UserID == id })
}

// Listing is a marketplace offer: a service, component or finished game.
type Listing struct {
	ID          ListingID `json:"id" jsonschema:"description=Listing identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	SellerID    UserID    `json:"sellerId"`
	Category    string    `json:"category,omitempty"`
	PriceCents  int64     `json:"priceCents" jsonschema:"minimum=0"`
	Currency    string    `json:"currency,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Extra       Extra     `json:"-"`
}

// Clone returns a deep copy.
func (l *Listing) Clone() *Listing {
	c := *l
	c.Extra = maps.Clone(l.Extra)
	return &c
}

// GetID implements jsonldb.Row.
func (l *Listing) GetID() string { return string(l.ID) }

// Validate implements jsonldb.Row.
func (l *Listing) Validate() error {
	if l.ID == "" {
		return apperrors.MissingField("id")
	}
	if strings.TrimSpace(l.Title) == "" {
		return apperrors.MissingField("title")
	}
	if l.SellerID == "" {
		return apperrors.MissingField("sellerId")
	}
	if l.PriceCents < 0 {
		return apperrors.Validation("price cannot be negative")
	}
	return nil
}
