package catalog

import (
	"time"

	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// JobService manages bgs_jobs.
type JobService struct {
	table[*models.Job]
	env *env
}

// Create stores a new job posting. An empty PosterID defaults to the
// signed-in user.
func (s *JobService) Create(j models.Job) (*models.Job, error) {
	poster, err := s.env.owner(j.PosterID)
	if err != nil {
		return nil, err
	}
	if err := s.env.requireUser("posterId", poster); err != nil {
		return nil, err
	}
	j.ID = models.JobID(jsonldb.NewID())
	j.PosterID = poster
	j.CreatedAt = s.env.now().UTC()
	if err := s.rows.Append(&j); err != nil {
		return nil, err
	}
	return j.Clone(), nil
}

// Update applies fn to a copy of the job and stores the result.
func (s *JobService) Update(id models.JobID, fn func(*models.Job)) (*models.Job, error) {
	return s.rows.Modify(string(id), func(j *models.Job) (*models.Job, error) {
		fn(j)
		if err := s.env.requireUser("posterId", j.PosterID); err != nil {
			return nil, err
		}
		return j, nil
	})
}

// Delete removes the job.
func (s *JobService) Delete(id models.JobID) error {
	return s.delete(string(id))
}

// List returns the jobs matching f. Tag matches required skills.
func (s *JobService) List(f Filter) []*models.Job {
	return s.list(func(j *models.Job) bool {
		return f.matchOwner(j.PosterID) &&
			f.matchTag(j.Skills) &&
			f.matchText(append([]string{j.Title, j.Description, j.JobType}, j.Skills...)...)
	}, func(j *models.Job) time.Time { return j.CreatedAt }, f.Newest)
}
