package jsonldb

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/maruel/bgstudio/internal/errors"
	"github.com/maruel/bgstudio/internal/storage"
)

type testRow struct {
	ID   string   `json:"id" jsonschema:"description=Row identifier"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	c.Tags = slices.Clone(r.Tags)
	return &c
}

func (r *testRow) GetID() string { return r.ID }

func (r *testRow) Validate() error {
	if r.ID == "" {
		return apperrors.MissingField("id")
	}
	return nil
}

// valueRow is stored by value and is not comparable.
type valueRow struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags,omitempty"`
}

func (r valueRow) Clone() valueRow {
	r.Tags = slices.Clone(r.Tags)
	return r
}

func (r valueRow) GetID() string { return r.ID }

func (r valueRow) Validate() error {
	if r.ID == "" {
		return apperrors.MissingField("id")
	}
	return nil
}

func newTestCollection(t *testing.T, m storage.Medium) *Collection[*testRow] {
	t.Helper()
	c, err := NewCollection[*testRow](m, "rows", WithDebounce(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCollection(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		if c.Len() != 0 {
			t.Errorf("Len() = %d", c.Len())
		}
		if _, ok := c.Get("1"); ok {
			t.Error("Get() found a row in an empty collection")
		}
	})
	t.Run("null_rows_dropped", func(t *testing.T) {
		m := storage.NewMemoryStore()
		if err := m.Set("rows", []byte(`[{"id":"1","name":"a"},null]`)); err != nil {
			t.Fatal(err)
		}
		c := newTestCollection(t, m)
		if c.Len() != 1 {
			t.Errorf("Len() = %d, want 1", c.Len())
		}
	})
	t.Run("value_rows", func(t *testing.T) {
		m := storage.NewMemoryStore()
		if err := m.Set("rows", []byte(`[{"id":"1","tags":["a"]},null,{"id":"2"}]`)); err != nil {
			t.Fatal(err)
		}
		c, err := NewCollection[valueRow](m, "rows", WithDebounce(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		if c.Len() != 2 {
			t.Errorf("Len() = %d, want 2", c.Len())
		}
		if r, ok := c.Get("1"); !ok || !slices.Equal(r.Tags, []string{"a"}) {
			t.Errorf("Get(1) = %+v, %v", r, ok)
		}
	})
	t.Run("unreadable_rows_kept", func(t *testing.T) {
		m := storage.NewMemoryStore()
		if err := m.Set("rows", []byte(`[{"id":"1","name":"a"},{"id":"2","name":5},null]`)); err != nil {
			t.Fatal(err)
		}
		c := newTestCollection(t, m)
		if c.Len() != 1 || c.Unreadable() != 1 {
			t.Fatalf("Len() = %d, Unreadable() = %d, want 1, 1", c.Len(), c.Unreadable())
		}
		if err := c.Append(&testRow{ID: "3", Name: "c"}); err != nil {
			t.Fatal(err)
		}
		if err := c.Flush(); err != nil {
			t.Fatal(err)
		}
		data, _, err := m.Get("rows")
		if err != nil {
			t.Fatal(err)
		}
		if got, want := string(data), `[{"id":"1","name":"a"},{"id":"3","name":"c"},{"id":"2","name":5}]`; got != want {
			t.Errorf("stored %s, want %s", got, want)
		}

		if err := c.Replace([]*testRow{{ID: "9"}}); err != nil {
			t.Fatal(err)
		}
		if err := c.Flush(); err != nil {
			t.Fatal(err)
		}
		if c.Unreadable() != 0 {
			t.Errorf("Unreadable() = %d after Replace", c.Unreadable())
		}
		data, _, _ = m.Get("rows")
		if got, want := string(data), `[{"id":"9","name":""}]`; got != want {
			t.Errorf("stored %s, want %s", got, want)
		}
	})
	t.Run("append", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		if err := c.Append(&testRow{ID: "1", Name: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := c.Append(&testRow{ID: "2", Name: "b"}); err != nil {
			t.Fatal(err)
		}
		err := c.Append(&testRow{ID: "1", Name: "dup"})
		if !apperrors.HasCode(err, apperrors.ErrConflict) {
			t.Errorf("Append(dup) = %v, want conflict", err)
		}
		err = c.Append(&testRow{Name: "no id"})
		if !apperrors.HasCode(err, apperrors.ErrMissingField) {
			t.Errorf("Append(no id) = %v, want missing field", err)
		}
		var names []string
		for r := range c.All() {
			names = append(names, r.Name)
		}
		if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
			t.Errorf("All() mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("reads_are_clones", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		row := &testRow{ID: "1", Tags: []string{"x"}}
		if err := c.Append(row); err != nil {
			t.Fatal(err)
		}
		row.Tags[0] = "mutated"
		got, _ := c.Get("1")
		got.Name = "mutated"
		again, _ := c.Get("1")
		if diff := cmp.Diff(&testRow{ID: "1", Tags: []string{"x"}}, again); diff != "" {
			t.Errorf("stored row changed (-want +got):\n%s", diff)
		}
	})
	t.Run("modify", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		if err := c.Append(&testRow{ID: "1", Name: "a", Tags: []string{"t"}}); err != nil {
			t.Fatal(err)
		}
		before := c.Value().Read()
		got, err := c.Modify("1", func(r *testRow) (*testRow, error) {
			r.Name = "b"
			return r, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(&testRow{ID: "1", Name: "b", Tags: []string{"t"}}, got); diff != "" {
			t.Errorf("Modify() mismatch (-want +got):\n%s", diff)
		}
		if before[0].Name != "a" {
			t.Error("previous snapshot was modified")
		}
		if _, err := c.Modify("9", func(r *testRow) (*testRow, error) { return r, nil }); !apperrors.HasCode(err, apperrors.ErrNotFound) {
			t.Errorf("Modify(missing) = %v", err)
		}
		_, err = c.Modify("1", func(r *testRow) (*testRow, error) {
			r.ID = "2"
			return r, nil
		})
		if !apperrors.HasCode(err, apperrors.ErrValidationFailed) {
			t.Errorf("Modify(change id) = %v", err)
		}
		boom := errors.New("boom")
		if _, err := c.Modify("1", func(*testRow) (*testRow, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Errorf("Modify(fail) = %v", err)
		}
	})
	t.Run("delete", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		for _, id := range []string{"1", "2", "3"} {
			if err := c.Append(&testRow{ID: id}); err != nil {
				t.Fatal(err)
			}
		}
		notified := 0
		defer c.Observe(func([]*testRow) { notified++ })()
		ok, err := c.Delete("2")
		if err != nil || !ok {
			t.Fatalf("Delete() = %v, %v", ok, err)
		}
		ok, err = c.Delete("2")
		if err != nil || ok {
			t.Fatalf("Delete(again) = %v, %v", ok, err)
		}
		if notified != 1 {
			t.Errorf("notified %d times, want 1", notified)
		}
		var ids []string
		for r := range c.All() {
			ids = append(ids, r.ID)
		}
		if diff := cmp.Diff([]string{"1", "3"}, ids); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("replace", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		err := c.Replace([]*testRow{{ID: "1"}, {ID: "1"}})
		if !apperrors.HasCode(err, apperrors.ErrConflict) {
			t.Errorf("Replace(dup) = %v", err)
		}
		if err := c.Replace([]*testRow{{ID: "b"}, {ID: "a"}}); err != nil {
			t.Fatal(err)
		}
		first, ok := c.Find(func(r *testRow) bool { return true })
		if !ok || first.ID != "b" {
			t.Errorf("Find() = %v, %v", first, ok)
		}
	})
	t.Run("filter", func(t *testing.T) {
		c := newTestCollection(t, storage.NewMemoryStore())
		for _, n := range []string{"alpha", "beta", "almond"} {
			if err := c.Append(&testRow{ID: NewID(), Name: n}); err != nil {
				t.Fatal(err)
			}
		}
		var got []string
		for r := range c.Filter(func(r *testRow) bool { return strings.HasPrefix(r.Name, "al") }) {
			got = append(got, r.Name)
		}
		if diff := cmp.Diff([]string{"alpha", "almond"}, got); diff != "" {
			t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("persist", func(t *testing.T) {
		m := storage.NewMemoryStore()
		c := newTestCollection(t, m)
		if err := c.Append(&testRow{ID: "1", Name: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
		data, ok, err := m.Get("rows")
		if err != nil || !ok {
			t.Fatalf("Get() = %v, %v", ok, err)
		}
		if got, want := string(data), `[{"id":"1","name":"a"}]`; got != want {
			t.Errorf("stored %s, want %s", got, want)
		}
	})
}

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for range 1000 {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor[*testRow]()
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != "object" {
		t.Errorf("Type = %q", s.Type)
	}
	p, ok := s.Properties.Get("id")
	if !ok {
		t.Fatal("missing id property")
	}
	if p.Description != "Row identifier" {
		t.Errorf("Description = %q", p.Description)
	}
	if _, err := SchemaFor[int](); err == nil {
		t.Error("expected error for non-struct")
	}
	a, err := CollectionSchema[*testRow]()
	if err != nil {
		t.Fatal(err)
	}
	if a.Type != "array" || a.Items == nil {
		t.Errorf("CollectionSchema() = %+v", a)
	}
}

func TestFollow(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer local.Close()
	remote, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer remote.Close()

	c := newTestCollection(t, local)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	if err := Follow(ctx, local, c); err != nil {
		t.Fatal(err)
	}
	if err := remote.Set("rows", []byte(`[{"id":"r","name":"remote"}]`)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "reload", func() bool { return c.Has("r") })
}
