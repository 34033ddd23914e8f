package catalog

import (
	"time"

	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// EventService manages bgs_events.
type EventService struct {
	table[*models.Event]
	env *env
}

// Create stores a new event. An empty OrganizerID defaults to the signed-in
// user. AssociatedProjectID is optional but must exist when set.
func (s *EventService) Create(e models.Event) (*models.Event, error) {
	organizer, err := s.env.owner(e.OrganizerID)
	if err != nil {
		return nil, err
	}
	e.OrganizerID = organizer
	if err := s.check(&e); err != nil {
		return nil, err
	}
	e.ID = models.EventID(jsonldb.NewID())
	e.CreatedAt = s.env.now().UTC()
	if err := s.rows.Append(&e); err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// Update applies fn to a copy of the event and stores the result.
func (s *EventService) Update(id models.EventID, fn func(*models.Event)) (*models.Event, error) {
	return s.rows.Modify(string(id), func(e *models.Event) (*models.Event, error) {
		fn(e)
		if err := s.check(e); err != nil {
			return nil, err
		}
		return e, nil
	})
}

func (s *EventService) check(e *models.Event) error {
	if err := s.env.requireUser("organizerId", e.OrganizerID); err != nil {
		return err
	}
	return s.env.requireProject("associatedProjectId", e.AssociatedProjectID)
}

// Delete removes the event.
func (s *EventService) Delete(id models.EventID) error {
	return s.delete(string(id))
}

// Upcoming returns the events starting at or after t, soonest first.
func (s *EventService) Upcoming(t time.Time) []*models.Event {
	out := s.list(func(e *models.Event) bool { return !e.StartsAt.Before(t) }, nil, false)
	sortBy(out, func(e *models.Event) time.Time { return e.StartsAt }, false)
	return out
}

// List returns the events matching f. Events have no tags; f.Tag is ignored.
func (s *EventService) List(f Filter) []*models.Event {
	return s.list(func(e *models.Event) bool {
		return f.matchOwner(e.OrganizerID) &&
			f.matchText(e.Title, e.Description, e.Location)
	}, func(e *models.Event) time.Time { return e.CreatedAt }, f.Newest)
}
