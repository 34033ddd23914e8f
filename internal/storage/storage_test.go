package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	apperrors "github.com/maruel/bgstudio/internal/errors"
)

// runMediumTests runs a common test suite against any Medium implementation.
func runMediumTests(t *testing.T, m Medium) {
	t.Helper()

	t.Run("Get absent", func(t *testing.T) {
		v, ok, err := m.Get("bgs_users")
		if err != nil {
			t.Fatal(err)
		}
		if ok || v != nil {
			t.Fatalf("expected absent key, got %q", v)
		}
	})

	t.Run("Set and Get", func(t *testing.T) {
		if err := m.Set("bgs_users", []byte(`[{"id":"1"}]`)); err != nil {
			t.Fatal(err)
		}
		v, ok, err := m.Get("bgs_users")
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(v) != `[{"id":"1"}]` {
			t.Fatalf("unexpected value %q (ok=%v)", v, ok)
		}
	})

	t.Run("Set overwrites", func(t *testing.T) {
		if err := m.Set("bgs_users", []byte(`[]`)); err != nil {
			t.Fatal(err)
		}
		v, _, err := m.Get("bgs_users")
		if err != nil {
			t.Fatal(err)
		}
		if string(v) != `[]` {
			t.Fatalf("expected overwrite, got %q", v)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		if err := m.Set("bgs_current_user_id", []byte(`null`)); err != nil {
			t.Fatal(err)
		}
		keys, err := m.Keys()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"bgs_current_user_id", "bgs_users"}, keys); diff != "" {
			t.Fatalf("keys mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := m.Remove("bgs_current_user_id"); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := m.Get("bgs_current_user_id"); ok {
			t.Fatal("expected key to be removed")
		}
		if err := m.Remove("bgs_current_user_id"); err != nil {
			t.Fatalf("removing an absent key: %v", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		for _, k := range []string{"", ".hidden", "a/b", "a b"} {
			if err := m.Set(k, []byte("1")); err == nil {
				t.Errorf("expected error for key %q", k)
			}
		}
	})
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	defer func() { _ = m.Close() }()
	runMediumTests(t, m)

	t.Run("values are copied", func(t *testing.T) {
		buf := []byte(`"x"`)
		if err := m.Set("k", buf); err != nil {
			t.Fatal(err)
		}
		buf[1] = 'y'
		v, _, _ := m.Get("k")
		if string(v) != `"x"` {
			t.Errorf("stored value aliased caller buffer: %q", v)
		}
	})
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = fs.Close() }()
	runMediumTests(t, fs)

	t.Run("reopen", func(t *testing.T) {
		fs2, err := NewFileStore(dir)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = fs2.Close() }()
		v, ok, err := fs2.Get("bgs_users")
		if err != nil || !ok || string(v) != `[]` {
			t.Fatalf("unexpected value after reopen %q ok=%v err=%v", v, ok, err)
		}
	})

	t.Run("ignores foreign files", func(t *testing.T) {
		if _, ok := keyFromFile(".bgs_users.123.tmp"); ok {
			t.Error("temp file must not be a key")
		}
		if _, ok := keyFromFile(ConfigFile); ok {
			t.Error("config file must not be a key")
		}
		if k, ok := keyFromFile("bgs_jobs.json"); !ok || k != "bgs_jobs" {
			t.Errorf("unexpected key %q ok=%v", k, ok)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bgs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	runMediumTests(t, s)
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(filepath.Join(t.TempDir(), "badger"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	runMediumTests(t, s)
}

func TestQuota(t *testing.T) {
	inner := NewMemoryStore()
	if err := inner.Set("a", []byte("12345")); err != nil {
		t.Fatal(err)
	}
	m, err := WithQuota(inner, 20)
	if err != nil {
		t.Fatal(err)
	}
	q := m.(*Quota)
	if q.Used() != 6 {
		t.Fatalf("expected 6 bytes in use, got %d", q.Used())
	}

	t.Run("within limit", func(t *testing.T) {
		if err := m.Set("b", []byte("123456789")); err != nil {
			t.Fatal(err)
		}
		if q.Used() != 16 {
			t.Errorf("expected 16 bytes in use, got %d", q.Used())
		}
	})

	t.Run("exceeded", func(t *testing.T) {
		err := m.Set("c", []byte("12345"))
		if !apperrors.HasCode(err, apperrors.ErrQuotaExceeded) {
			t.Fatalf("expected quota error, got %v", err)
		}
		if _, ok, _ := m.Get("c"); ok {
			t.Error("rejected write must not be stored")
		}
	})

	t.Run("overwrite counts replaced size", func(t *testing.T) {
		if err := m.Set("b", []byte("1")); err != nil {
			t.Fatal(err)
		}
		if q.Used() != 8 {
			t.Errorf("expected 8 bytes in use, got %d", q.Used())
		}
	})

	t.Run("remove frees space", func(t *testing.T) {
		if err := m.Remove("a"); err != nil {
			t.Fatal(err)
		}
		if q.Used() != 2 {
			t.Errorf("expected 2 bytes in use, got %d", q.Used())
		}
	})
}

func TestQuotaKeepsWatcher(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m, err := WithQuota(fs, DefaultQuota)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()
	if _, ok := m.(Watcher); !ok {
		t.Error("quota over a FileStore must still be a Watcher")
	}
	m2, err := WithQuota(NewMemoryStore(), DefaultQuota)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m2.(Watcher); ok {
		t.Error("quota over a MemoryStore must not be a Watcher")
	}
}
