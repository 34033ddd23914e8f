package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	apperrors "github.com/maruel/bgstudio/internal/errors"
	"github.com/maruel/bgstudio/internal/models"
)

// bgs runs the command line with args against dir and returns its output.
func bgs(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := mainImpl(t.Context(), append([]string{"--data-dir", dir, "--log-level", "error"}, args...), &out)
	return out.String(), err
}

func mustBgs(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := bgs(t, dir, args...)
	if err != nil {
		t.Fatalf("bgs %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestSessionCommands(t *testing.T) {
	dir := t.TempDir()
	var bob models.User
	if err := json.Unmarshal([]byte(mustBgs(t, dir, "register", "--email", "b@x.com", "--name", "Bob", "--skills", "art,rules")), &bob); err != nil {
		t.Fatal(err)
	}
	if bob.ID == "" || bob.DisplayName != "Bob" || len(bob.Skills) != 2 {
		t.Fatalf("register = %+v", bob)
	}

	mustBgs(t, dir, "logout")
	if out := mustBgs(t, dir, "whoami"); !strings.Contains(out, "not signed in") {
		t.Errorf("whoami after logout = %q", out)
	}
	mustBgs(t, dir, "login", "b@x.com", "--password", "whatever")
	if out := mustBgs(t, dir, "whoami"); !strings.Contains(out, string(bob.ID)) {
		t.Errorf("whoami after login = %q", out)
	}
	if _, err := bgs(t, dir, "login", "nobody@x.com"); err == nil {
		t.Error("login with unknown email should fail")
	}

	out := mustBgs(t, dir, "update", "--bio", "Designs dice games")
	var updated models.User
	if err := json.Unmarshal([]byte(out), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Bio != "Designs dice games" || len(updated.Skills) != 2 {
		t.Errorf("update = %+v", updated)
	}

	mustBgs(t, dir, "register", "--email", "c@x.com", "--name", "Cleo")
	if out := mustBgs(t, dir, "users"); !strings.Contains(out, "* ") || strings.Count(out, "\n") != 2 {
		t.Errorf("users = %q", out)
	}
	mustBgs(t, dir, "switch", string(bob.ID))
	if _, err := bgs(t, dir, "switch", "missing"); err == nil {
		t.Error("switch to unknown id should fail")
	}

	mustBgs(t, dir, "logout")
	if _, err := bgs(t, dir, "update", "--bio", "x"); !apperrors.HasCode(err, apperrors.ErrNoSession) {
		t.Errorf("update without session = %v", err)
	}
}

func TestCatalogCommands(t *testing.T) {
	dir := t.TempDir()
	mustBgs(t, dir, "register", "--email", "a@x.com", "--name", "Ann")

	var p models.Project
	if err := json.Unmarshal([]byte(mustBgs(t, dir, "create", "projects", "--json", `{"title":"Meeple Quest","tags":["euro"]}`)), &p); err != nil {
		t.Fatal(err)
	}
	var g models.Group
	if err := json.Unmarshal([]byte(mustBgs(t, dir, "create", "groups", "--json", `{"name":"Playtesters"}`)), &g); err != nil {
		t.Fatal(err)
	}
	if _, err := bgs(t, dir, "create", "widgets"); err == nil {
		t.Error("unknown collection should fail")
	}
	if _, err := bgs(t, dir, "create", "jobs", "--json", `{"title":"x","posterId":"ghost"}`); !apperrors.HasCode(err, apperrors.ErrValidationFailed) {
		t.Errorf("create with unknown poster = %v", err)
	}

	var projects []models.Project
	if err := json.Unmarshal([]byte(mustBgs(t, dir, "list", "projects", "--tag", "EURO")), &projects); err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].ID != p.ID {
		t.Errorf("list = %+v", projects)
	}

	mustBgs(t, dir, "register", "--email", "z@x.com", "--name", "Zoe")
	var joined models.Group
	if err := json.Unmarshal([]byte(mustBgs(t, dir, "join", string(g.ID))), &joined); err != nil {
		t.Fatal(err)
	}
	if len(joined.Members) != 2 {
		t.Errorf("join = %+v", joined.Members)
	}
	mustBgs(t, dir, "leave", string(g.ID))

	var rep struct {
		Fixed      []json.RawMessage `json:"fixed"`
		Unresolved []json.RawMessage `json:"unresolved"`
	}
	if err := json.Unmarshal([]byte(mustBgs(t, dir, "repair")), &rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Fixed) != 0 || len(rep.Unresolved) != 0 {
		t.Errorf("repair = %+v", rep)
	}

	mustBgs(t, dir, "delete", "projects", string(p.ID))
	if _, err := bgs(t, dir, "delete", "projects", string(p.ID)); !apperrors.HasCode(err, apperrors.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestMiscCommands(t *testing.T) {
	dir := t.TempDir()
	out := mustBgs(t, dir, "schema", "users")
	if !strings.Contains(out, `"displayName"`) {
		t.Errorf("schema users = %s", out)
	}
	if out := mustBgs(t, dir, "version"); !strings.HasPrefix(out, "bgs ") {
		t.Errorf("version = %q", out)
	}
	if _, err := bgs(t, dir, "history"); err == nil {
		t.Error("history without history enabled should fail")
	}
	if _, err := bgs(t, dir, "--log-level", "loud", "whoami"); err == nil {
		t.Error("invalid log level should fail")
	}
	if out := mustBgs(t, dir, "--backend", "sqlite", "whoami"); !strings.Contains(out, "not signed in") {
		t.Errorf("whoami = %q", out)
	}
}
