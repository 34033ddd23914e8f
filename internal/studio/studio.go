// Package studio opens the data directory and wires every store and service.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/maruel/bgstudio/internal/catalog"
	"github.com/maruel/bgstudio/internal/identity"
	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
	"github.com/maruel/bgstudio/internal/storage"
)

var (
	errNoWatcher = errors.New("backend does not report external changes")
	errNoHistory = errors.New("history is not enabled")
)

// Studio is one opened data directory.
type Studio struct {
	Config  *storage.Config
	Backend *storage.Backend

	Users    *jsonldb.Collection[*models.User]
	Current  *jsonldb.Value[*models.UserID]
	Projects *jsonldb.Collection[*models.Project]
	Jobs     *jsonldb.Collection[*models.Job]
	Events   *jsonldb.Collection[*models.Event]
	Groups   *jsonldb.Collection[*models.Group]
	Listings *jsonldb.Collection[*models.Listing]

	Session *identity.Session
	Catalog *catalog.Catalog

	closers []func() error
}

// Open opens dir with cfg. A nil cfg loads bgs.yaml from dir.
func Open(dir string, cfg *storage.Config) (*Studio, error) {
	if cfg == nil {
		var err error
		if cfg, err = storage.LoadConfig(dir); err != nil {
			return nil, err
		}
	}
	debounce, err := cfg.DebounceInterval()
	if err != nil {
		return nil, err
	}
	b, err := storage.Open(cfg, dir)
	if err != nil {
		return nil, err
	}
	s := &Studio{Config: cfg, Backend: b}
	if err := s.open(jsonldb.WithDebounce(debounce)); err != nil {
		_ = s.Close()
		return nil, err
	}

	var opts []identity.Option
	if cfg.Auth.VerifyPasswords {
		opts = append(opts, identity.WithVerifier(identity.BcryptVerifier{}))
	}
	opts = append(opts, identity.WithLoginRate(cfg.Auth.LoginRatePerMin))
	s.Session = identity.NewSession(s.Users, s.Current, opts...)
	s.Catalog = catalog.New(catalog.Stores{
		Users:    s.Users,
		Projects: s.Projects,
		Jobs:     s.Jobs,
		Events:   s.Events,
		Groups:   s.Groups,
		Listings: s.Listings,
	}, s.Session)
	slog.Debug("Opened studio", "dir", dir, "backend", cfg.Backend, "debounce", debounce)
	return s, nil
}

func (s *Studio) open(opts ...jsonldb.Option) error {
	m := s.Backend.Medium
	var err error
	if s.Users, err = openCollection[*models.User](s, m, models.KeyUsers, opts); err != nil {
		return err
	}
	if s.Current, err = jsonldb.NewValue[*models.UserID](m, models.KeyCurrentUserID, nil, opts...); err != nil {
		return err
	}
	s.closers = append(s.closers, s.Current.Close)
	if s.Projects, err = openCollection[*models.Project](s, m, models.KeyProjects, opts); err != nil {
		return err
	}
	if s.Jobs, err = openCollection[*models.Job](s, m, models.KeyJobs, opts); err != nil {
		return err
	}
	if s.Events, err = openCollection[*models.Event](s, m, models.KeyEvents, opts); err != nil {
		return err
	}
	if s.Groups, err = openCollection[*models.Group](s, m, models.KeyGroups, opts); err != nil {
		return err
	}
	s.Listings, err = openCollection[*models.Listing](s, m, models.KeyListings, opts)
	return err
}

func openCollection[T jsonldb.Row[T]](s *Studio, m storage.Medium, key string, opts []jsonldb.Option) (*jsonldb.Collection[T], error) {
	c, err := jsonldb.NewCollection[T](m, key, opts...)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, c.Close)
	return c, nil
}

// reloaders returns every value that can follow external changes.
func (s *Studio) reloaders() []jsonldb.Reloader {
	return []jsonldb.Reloader{s.Users, s.Current, s.Projects, s.Jobs, s.Events, s.Groups, s.Listings}
}

// Follow reloads the stores whenever another process changes the data
// directory, until ctx is canceled. Only the file backend supports it.
func (s *Studio) Follow(ctx context.Context) error {
	w, ok := s.Backend.Medium.(storage.Watcher)
	if !ok {
		return fmt.Errorf("%s: %w", s.Config.Backend, errNoWatcher)
	}
	return jsonldb.Follow(ctx, w, s.reloaders()...)
}

// Flush writes every pending change now.
func (s *Studio) Flush() error {
	var errs []error
	for _, r := range s.reloaders() {
		if f, ok := r.(interface{ Flush() error }); ok {
			errs = append(errs, f.Flush())
		}
	}
	return errors.Join(errs...)
}

// History returns the last n commits touching key.
func (s *Studio) History(key string, n int) ([]storage.Commit, error) {
	if s.Backend.History == nil {
		return nil, errNoHistory
	}
	file := ""
	if key != "" {
		if err := storage.ValidateKey(key); err != nil {
			return nil, err
		}
		file = key + ".json"
	}
	return s.Backend.History.Log(file, n)
}

// Close flushes every store and closes the backend.
func (s *Studio) Close() error {
	if s.Session != nil {
		s.Session.Close()
	}
	var errs []error
	for _, c := range slices.Backward(s.closers) {
		errs = append(errs, c())
	}
	s.closers = nil
	if s.Backend != nil {
		errs = append(errs, s.Backend.Close())
		s.Backend = nil
	}
	return errors.Join(errs...)
}

// Collections lists the names accepted by Schema.
func Collections() []string {
	return []string{"users", "projects", "jobs", "events", "groups", "listings"}
}

// Schema returns the JSON Schema of the array stored for a collection.
func Schema(collection string) (*jsonschema.Schema, error) {
	switch collection {
	case "users":
		return jsonldb.CollectionSchema[*models.User]()
	case "projects":
		return jsonldb.CollectionSchema[*models.Project]()
	case "jobs":
		return jsonldb.CollectionSchema[*models.Job]()
	case "events":
		return jsonldb.CollectionSchema[*models.Event]()
	case "groups":
		return jsonldb.CollectionSchema[*models.Group]()
	case "listings":
		return jsonldb.CollectionSchema[*models.Listing]()
	default:
		return nil, fmt.Errorf("unknown collection %q (supported: %v)", collection, Collections())
	}
}
