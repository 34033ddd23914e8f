package catalog

import (
	"slices"
	"time"

	apperrors "github.com/maruel/bgstudio/internal/errors"
	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// GroupService manages bgs_groups.
type GroupService struct {
	table[*models.Group]
	env *env
}

// Create stores a new group. The creator becomes its owner and first member.
func (s *GroupService) Create(g models.Group) (*models.Group, error) {
	creator, err := s.env.owner(g.CreatorID)
	if err != nil {
		return nil, err
	}
	now := s.env.now().UTC()
	g.ID = models.GroupID(jsonldb.NewID())
	g.CreatorID = creator
	g.CreatedAt = now
	g.Members = slices.DeleteFunc(slices.Clone(g.Members), func(m models.Member) bool { return m.UserID == creator })
	g.Members = slices.Insert(g.Members, 0, models.Member{UserID: creator, Role: models.GroupOwner, JoinedAt: now})
	for i := range g.Members {
		if g.Members[i].Role == "" {
			g.Members[i].Role = models.GroupMember
		}
		if g.Members[i].JoinedAt.IsZero() {
			g.Members[i].JoinedAt = now
		}
	}
	if err := s.check(&g); err != nil {
		return nil, err
	}
	if err := s.rows.Append(&g); err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// Update applies fn to a copy of the group and stores the result.
func (s *GroupService) Update(id models.GroupID, fn func(*models.Group)) (*models.Group, error) {
	return s.rows.Modify(string(id), func(g *models.Group) (*models.Group, error) {
		fn(g)
		if err := s.check(g); err != nil {
			return nil, err
		}
		return g, nil
	})
}

func (s *GroupService) check(g *models.Group) error {
	if err := s.env.requireUser("creatorId", g.CreatorID); err != nil {
		return err
	}
	for _, m := range g.Members {
		if err := s.env.requireUser("members.userId", m.UserID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the group.
func (s *GroupService) Delete(id models.GroupID) error {
	return s.delete(string(id))
}

// Join adds the signed-in user to the group. Joining twice is a no-op.
func (s *GroupService) Join(id models.GroupID) (*models.Group, error) {
	user, err := s.env.owner("")
	if err != nil {
		return nil, err
	}
	if err := s.env.requireUser("members.userId", user); err != nil {
		return nil, err
	}
	return s.rows.Modify(string(id), func(g *models.Group) (*models.Group, error) {
		if !g.IsMember(user) {
			g.Members = append(g.Members, models.Member{UserID: user, Role: models.GroupMember, JoinedAt: s.env.now().UTC()})
		}
		return g, nil
	})
}

// Leave removes the signed-in user from the group. The owner cannot leave.
func (s *GroupService) Leave(id models.GroupID) (*models.Group, error) {
	user, err := s.env.owner("")
	if err != nil {
		return nil, err
	}
	return s.rows.Modify(string(id), func(g *models.Group) (*models.Group, error) {
		if g.CreatorID == user {
			return nil, apperrors.Validation("the group owner cannot leave").WithDetail("group", string(id))
		}
		g.Members = slices.DeleteFunc(g.Members, func(m models.Member) bool { return m.UserID == user })
		return g, nil
	})
}

// MemberOf returns the groups user belongs to.
func (s *GroupService) MemberOf(user models.UserID) []*models.Group {
	return s.list(func(g *models.Group) bool { return g.IsMember(user) }, nil, false)
}

// List returns the groups matching f. Owner matches the creator.
func (s *GroupService) List(f Filter) []*models.Group {
	return s.list(func(g *models.Group) bool {
		return f.matchOwner(g.CreatorID) &&
			f.matchTag(g.Tags) &&
			f.matchText(append([]string{g.Name, g.Description}, g.Tags...)...)
	}, func(g *models.Group) time.Time { return g.CreatedAt }, f.Newest)
}
