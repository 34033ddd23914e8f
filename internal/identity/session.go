// Package identity tracks which member is signed in.
//
// A Session combines the users collection with the stored current-user
// pointer. The current user is never stored on its own: it is looked up from
// both inputs each time it is needed, so it cannot go stale.
package identity

import (
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/maruel/bgstudio/internal/errors"
	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// Option configures a Session.
type Option func(*Session)

// WithVerifier sets how Login checks passwords. The default is AcceptAny.
func WithVerifier(v Verifier) Option {
	return func(s *Session) {
		s.verifier = v
	}
}

// WithLoginRate limits login attempts to perMin per minute for each email.
// 0 disables the limit.
func WithLoginRate(perMin int) Option {
	return func(s *Session) {
		if perMin > 0 {
			s.limiter = newLoginLimiter(perMin)
		} else {
			s.limiter = nil
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session is the signed-in state of one application instance.
// Safe for concurrent use.
type Session struct {
	users    *jsonldb.Collection[*models.User]
	current  *jsonldb.Value[*models.UserID]
	verifier Verifier
	limiter  *loginLimiter
	now      func() time.Time

	mu        sync.Mutex
	observers map[int]func(*models.User)
	nextObs   int
	detach    []func()
}

// NewSession builds a session over the users collection and the current
// user pointer.
func NewSession(users *jsonldb.Collection[*models.User], current *jsonldb.Value[*models.UserID], opts ...Option) *Session {
	s := &Session{
		users:     users,
		current:   current,
		verifier:  AcceptAny{},
		now:       time.Now,
		observers: make(map[int]func(*models.User)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detach = []func(){
		users.Observe(func([]*models.User) { s.notify() }),
		current.Observe(func(*models.UserID) { s.notify() }),
	}
	return s
}

// Current returns a copy of the signed-in user, or nil when nobody is signed
// in or the pointer references a user that no longer exists.
func (s *Session) Current() *models.User {
	id := s.current.Read()
	if id == nil {
		return nil
	}
	u, ok := s.users.Get(string(*id))
	if !ok {
		return nil
	}
	return u
}

// CurrentID returns the stored pointer, which may dangle.
func (s *Session) CurrentID() (models.UserID, bool) {
	id := s.current.Read()
	if id == nil {
		return "", false
	}
	return *id, true
}

// Users returns every member in registration order.
func (s *Session) Users() iter.Seq[*models.User] {
	return s.users.All()
}

// Register creates a member and signs them in.
//
// Email addresses are not required to be unique; Login picks the first match.
func (s *Session) Register(reg models.Registration) (*models.User, error) {
	email := normalizeEmail(reg.Email)
	if email == "" {
		return nil, apperrors.MissingField("email")
	}
	hash, err := s.verifier.Hash(reg.Password)
	if err != nil {
		if errors.Is(err, errPasswordRequired) {
			return nil, apperrors.MissingField("password")
		}
		return nil, apperrors.InternalWithError("failed to register", err)
	}
	u := &models.User{
		ID:           models.UserID(jsonldb.NewID()),
		DisplayName:  strings.TrimSpace(reg.DisplayName),
		Email:        email,
		PasswordHash: hash,
		Bio:          reg.Bio,
		Location:     reg.Location,
		Skills:       nonNil(reg.Skills),
		Interests:    nonNil(reg.Interests),
		Roles:        nonNil(reg.Roles),
		JoinedAt:     s.now().UTC(),
	}
	if len(u.Roles) == 0 {
		u.Roles = []models.UserRole{models.RoleDesigner}
	}
	if err := s.users.Append(u); err != nil {
		return nil, err
	}
	s.setCurrent(u.ID)
	slog.Info("Registered user", "id", u.ID, "email", u.Email)
	return u.Clone(), nil
}

// Login signs in the first member whose email matches. Surrounding spaces
// are ignored, as in Register.
//
// An unknown email is a negative result (false, nil). A password rejected by
// the configured Verifier returns an UNAUTHORIZED error. With the default
// AcceptAny verifier every password is accepted.
func (s *Session) Login(email, password string) (bool, error) {
	email = normalizeEmail(email)
	if s.limiter != nil {
		if ok, wait := s.limiter.allow(email, s.now()); !ok {
			return false, apperrors.RateLimited("login").WithDetail("retry_after", wait.String())
		}
	}
	u, ok := s.users.Find(func(u *models.User) bool { return u.Email == email })
	if !ok {
		return false, nil
	}
	if !s.verifier.Verify(u, password) {
		slog.Info("Rejected login", "email", email)
		return false, apperrors.Unauthorized()
	}
	s.setCurrent(u.ID)
	return true, nil
}

// Logout signs out. It is a no-op when nobody is signed in.
func (s *Session) Logout() {
	if s.current.Read() == nil {
		return
	}
	s.current.Set(nil)
}

// SwitchUser signs in id without a password if such a member exists.
// It reports whether the pointer changed.
func (s *Session) SwitchUser(id models.UserID) bool {
	if !s.users.Has(string(id)) {
		return false
	}
	s.setCurrent(id)
	return true
}

// UpdateUser merges patch into the signed-in member's profile.
// It returns a NO_SESSION error when nobody is signed in.
func (s *Session) UpdateUser(patch models.UserPatch) (*models.User, error) {
	id, ok := s.CurrentID()
	if !ok {
		return nil, apperrors.NoSession()
	}
	u, err := s.users.Modify(string(id), func(u *models.User) (*models.User, error) {
		patch.Apply(u)
		return u, nil
	})
	if apperrors.HasCode(err, apperrors.ErrNotFound) {
		return nil, apperrors.NoSession().WithDetail("id", string(id))
	}
	return u, err
}

// Observe registers fn to be called with the current user whenever the users
// collection or the pointer changes. fn receives nil when nobody is signed in.
func (s *Session) Observe(fn func(*models.User)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Close detaches the session from its stores. The stores stay open.
func (s *Session) Close() {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	clear(s.observers)
	s.mu.Unlock()
	for _, d := range detach {
		d()
	}
}

func (s *Session) setCurrent(id models.UserID) {
	s.current.Set(&id)
}

func (s *Session) notify() {
	s.mu.Lock()
	if len(s.observers) == 0 {
		s.mu.Unlock()
		return
	}
	fns := make([]func(*models.User), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	u := s.Current()
	for _, fn := range fns {
		fn(u)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

// normalizeEmail is applied to emails on Register and Login.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
