// Package catalog manages the community content: projects, jobs, events,
// groups and marketplace listings.
//
// Every reference to another entity is a typed id and is checked against its
// target collection when written.
package catalog

import (
	"iter"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/maruel/bgstudio/internal/errors"
	"github.com/maruel/bgstudio/internal/identity"
	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// Stores are the collections the catalog works on.
type Stores struct {
	Users    *jsonldb.Collection[*models.User]
	Projects *jsonldb.Collection[*models.Project]
	Jobs     *jsonldb.Collection[*models.Job]
	Events   *jsonldb.Collection[*models.Event]
	Groups   *jsonldb.Collection[*models.Group]
	Listings *jsonldb.Collection[*models.Listing]
}

// Catalog groups the content services.
type Catalog struct {
	Projects *ProjectService
	Jobs     *JobService
	Events   *EventService
	Groups   *GroupService
	Listings *ListingService

	st  Stores
	env *env
}

// Option configures a Catalog.
type Option func(*env)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *env) {
		e.now = now
	}
}

// env is shared by every service.
type env struct {
	st      Stores
	session *identity.Session
	now     func() time.Time
}

// New creates the catalog services. session provides the default owner of
// new content.
func New(st Stores, session *identity.Session, opts ...Option) *Catalog {
	e := &env{st: st, session: session, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return &Catalog{
		Projects: &ProjectService{table: table[*models.Project]{st.Projects}, env: e},
		Jobs:     &JobService{table: table[*models.Job]{st.Jobs}, env: e},
		Events:   &EventService{table: table[*models.Event]{st.Events}, env: e},
		Groups:   &GroupService{table: table[*models.Group]{st.Groups}, env: e},
		Listings: &ListingService{table: table[*models.Listing]{st.Listings}, env: e},
		st:       st,
		env:      e,
	}
}

// owner returns id, or the signed-in user when id is empty.
func (e *env) owner(id models.UserID) (models.UserID, error) {
	if id != "" {
		return id, nil
	}
	if e.session == nil {
		return "", apperrors.NoSession()
	}
	u := e.session.Current()
	if u == nil {
		return "", apperrors.NoSession()
	}
	return u.ID, nil
}

// requireUser fails unless id references an existing user.
func (e *env) requireUser(field string, id models.UserID) error {
	if id == "" {
		return apperrors.MissingField(field)
	}
	if !e.st.Users.Has(string(id)) {
		return unknownRef(field, string(id))
	}
	return nil
}

// requireProject fails unless id is empty or references an existing project.
func (e *env) requireProject(field string, id models.ProjectID) error {
	if id == "" || e.st.Projects.Has(string(id)) {
		return nil
	}
	return unknownRef(field, string(id))
}

func unknownRef(field, id string) error {
	return apperrors.Validation("reference to unknown entity").WithDetail("field", field).WithDetail("id", id)
}

// Filter selects entities in List calls. Zero fields match everything.
type Filter struct {
	// Query must appear in the title, description or tags, ignoring case.
	Query string
	// Owner is the creator, poster, organizer or seller.
	Owner models.UserID
	// Tag must be one of the entity's tags or skills, ignoring case.
	Tag string
	// Newest sorts by creation time, newest first. Otherwise insertion order.
	Newest bool
}

// fold normalizes s for case-insensitive comparisons.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func (f *Filter) matchText(fields ...string) bool {
	if f.Query == "" {
		return true
	}
	q := fold(f.Query)
	return slices.ContainsFunc(fields, func(s string) bool { return strings.Contains(fold(s), q) })
}

func (f *Filter) matchTag(tags []string) bool {
	if f.Tag == "" {
		return true
	}
	t := fold(f.Tag)
	return slices.ContainsFunc(tags, func(s string) bool { return fold(s) == t })
}

func (f *Filter) matchOwner(id models.UserID) bool {
	return f.Owner == "" || f.Owner == id
}

// table holds the operations shared by every service.
type table[T jsonldb.Row[T]] struct {
	rows *jsonldb.Collection[T]
}

// Get returns the entity with the given id.
func (t table[T]) Get(id string) (T, error) {
	v, ok := t.rows.Get(id)
	if !ok {
		return v, apperrors.NotFound(t.rows.Key()).WithDetail("id", id)
	}
	return v, nil
}

// Len returns the number of entities.
func (t table[T]) Len() int {
	return t.rows.Len()
}

// All returns every entity in insertion order.
func (t table[T]) All() iter.Seq[T] {
	return t.rows.All()
}

func (t table[T]) delete(id string) error {
	ok, err := t.rows.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound(t.rows.Key()).WithDetail("id", id)
	}
	return nil
}

func (t table[T]) list(keep func(T) bool, created func(T) time.Time, newest bool) []T {
	out := slices.Collect(t.rows.Filter(keep))
	if newest {
		sortBy(out, created, true)
	}
	return out
}

func sortBy[T any](rows []T, key func(T) time.Time, desc bool) {
	slices.SortStableFunc(rows, func(a, b T) int {
		if desc {
			return key(b).Compare(key(a))
		}
		return key(a).Compare(key(b))
	})
}
