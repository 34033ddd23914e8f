package catalog

import (
	"log/slog"
	"time"

	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// ProjectService manages bgs_projects.
type ProjectService struct {
	table[*models.Project]
	env *env
}

// Create stores a new project. The id and creation time are assigned; an
// empty CreatorID defaults to the signed-in user.
func (s *ProjectService) Create(p models.Project) (*models.Project, error) {
	creator, err := s.env.owner(p.CreatorID)
	if err != nil {
		return nil, err
	}
	if err := s.env.requireUser("creatorId", creator); err != nil {
		return nil, err
	}
	p.ID = models.ProjectID(jsonldb.NewID())
	p.CreatorID = creator
	p.CreatedAt = s.env.now().UTC()
	if p.Status == "" {
		p.Status = models.ProjectConcept
	}
	if err := s.rows.Append(&p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Update applies fn to a copy of the project and stores the result.
func (s *ProjectService) Update(id models.ProjectID, fn func(*models.Project)) (*models.Project, error) {
	return s.rows.Modify(string(id), func(p *models.Project) (*models.Project, error) {
		fn(p)
		if err := s.env.requireUser("creatorId", p.CreatorID); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Delete removes the project and detaches the events showcasing it.
func (s *ProjectService) Delete(id models.ProjectID) error {
	if err := s.delete(string(id)); err != nil {
		return err
	}
	for e := range s.env.st.Events.Filter(func(e *models.Event) bool { return e.AssociatedProjectID == id }) {
		if _, err := s.env.st.Events.Modify(string(e.ID), func(e *models.Event) (*models.Event, error) {
			e.AssociatedProjectID = ""
			return e, nil
		}); err != nil {
			slog.Warn("failed to detach event from deleted project", "event", e.ID, "project", id, "err", err)
		}
	}
	return nil
}

// List returns the projects matching f.
func (s *ProjectService) List(f Filter) []*models.Project {
	return s.list(func(p *models.Project) bool {
		return f.matchOwner(p.CreatorID) &&
			f.matchTag(p.Tags) &&
			f.matchText(append([]string{p.Title, p.Description, p.Genre}, p.Tags...)...)
	}, func(p *models.Project) time.Time { return p.CreatedAt }, f.Newest)
}
