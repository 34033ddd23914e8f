package catalog

import (
	"errors"
	"log/slog"

	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// Fix describes one user reference found by RepairReferences.
type Fix struct {
	Key   string        `json:"key"`
	ID    string        `json:"id"`
	Field string        `json:"field"`
	From  string        `json:"from"`
	To    models.UserID `json:"to,omitempty"`
}

// Report is the outcome of RepairReferences.
type Report struct {
	// Fixed references were display names and now hold the matching user id.
	Fixed []Fix `json:"fixed"`
	// Unresolved references match no user, or more than one by display name.
	Unresolved []Fix `json:"unresolved"`
}

var errUnchanged = errors.New("unchanged")

// ref is one user reference field of an entity.
type ref struct {
	field string
	p     *models.UserID
}

// resolver maps display names to user ids.
type resolver struct {
	users  *jsonldb.Collection[*models.User]
	byName map[string][]models.UserID
}

func newResolver(users *jsonldb.Collection[*models.User]) *resolver {
	r := &resolver{users: users, byName: map[string][]models.UserID{}}
	for u := range users.All() {
		if n := fold(u.DisplayName); n != "" {
			r.byName[n] = append(r.byName[n], u.ID)
		}
	}
	return r
}

// resolve returns the id to store for v, and whether v is valid or fixable.
func (r *resolver) resolve(v models.UserID) (models.UserID, bool) {
	if v == "" || r.users.Has(string(v)) {
		return v, true
	}
	if ids := r.byName[fold(string(v))]; len(ids) == 1 {
		return ids[0], true
	}
	return "", false
}

// RepairReferences rewrites user references that hold a display name instead
// of a user id. Names are matched ignoring case; a name shared by several
// users is left alone and reported as unresolved.
func (c *Catalog) RepairReferences() (*Report, error) {
	r := newResolver(c.st.Users)
	rep := &Report{Fixed: []Fix{}, Unresolved: []Fix{}}
	var errs []error
	errs = append(errs,
		repair(c.st.Projects, func(p *models.Project) []ref {
			return []ref{{"creatorId", &p.CreatorID}}
		}, r, rep),
		repair(c.st.Jobs, func(j *models.Job) []ref {
			return []ref{{"posterId", &j.PosterID}}
		}, r, rep),
		repair(c.st.Events, func(e *models.Event) []ref {
			return []ref{{"organizerId", &e.OrganizerID}}
		}, r, rep),
		repair(c.st.Groups, func(g *models.Group) []ref {
			refs := []ref{{"creatorId", &g.CreatorID}}
			for i := range g.Members {
				refs = append(refs, ref{"members.userId", &g.Members[i].UserID})
			}
			return refs
		}, r, rep),
		repair(c.st.Listings, func(l *models.Listing) []ref {
			return []ref{{"sellerId", &l.SellerID}}
		}, r, rep),
	)
	if err := errors.Join(errs...); err != nil {
		return rep, err
	}
	slog.Info("Repaired references", "fixed", len(rep.Fixed), "unresolved", len(rep.Unresolved))
	return rep, nil
}

func repair[T jsonldb.Row[T]](rows *jsonldb.Collection[T], refs func(T) []ref, r *resolver, rep *Report) error {
	var errs []error
	for row := range rows.All() {
		var fixed, unresolved []Fix
		_, err := rows.Modify(row.GetID(), func(cur T) (T, error) {
			fixed, unresolved = nil, nil
			for _, f := range refs(cur) {
				fix := Fix{Key: rows.Key(), ID: cur.GetID(), Field: f.field, From: string(*f.p)}
				to, ok := r.resolve(*f.p)
				switch {
				case !ok:
					unresolved = append(unresolved, fix)
				case to != *f.p:
					fix.To = to
					*f.p = to
					fixed = append(fixed, fix)
				}
			}
			if len(fixed) == 0 {
				var zero T
				return zero, errUnchanged
			}
			return cur, nil
		})
		if err != nil && !errors.Is(err, errUnchanged) {
			errs = append(errs, err)
			continue
		}
		rep.Fixed = append(rep.Fixed, fixed...)
		rep.Unresolved = append(rep.Unresolved, unresolved...)
	}
	return errors.Join(errs...)
}
