package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("defaults written when missing", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Backend != BackendFile || cfg.QuotaBytes != DefaultQuota {
			t.Errorf("unexpected defaults %+v", cfg)
		}
		if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err != nil {
			t.Errorf("expected %s to be created: %v", ConfigFile, err)
		}
		d, err := cfg.DebounceInterval()
		if err != nil || d != DefaultDebounce {
			t.Errorf("unexpected debounce %v err=%v", d, err)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		dir := t.TempDir()
		data := "backend: memory\ndebounce: 50ms\nauth:\n  login_rate_per_min: 5\n"
		if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Backend != BackendMemory {
			t.Errorf("expected memory backend, got %q", cfg.Backend)
		}
		if d, _ := cfg.DebounceInterval(); d != 50*time.Millisecond {
			t.Errorf("expected 50ms, got %v", d)
		}
		if cfg.QuotaBytes != DefaultQuota {
			t.Errorf("expected default quota, got %d", cfg.QuotaBytes)
		}
		if cfg.Auth.LoginRatePerMin != 5 {
			t.Errorf("expected login rate 5, got %d", cfg.Auth.LoginRatePerMin)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, data := range []string{
			"backend: floppy\n",
			"debounce: soon\n",
			"quota_bytes: -1\n",
			"auth:\n  login_rate_per_min: -3\n",
		} {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(dir); err == nil {
				t.Errorf("expected error for %q", data)
			}
		}
	})
}

func TestOpen(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite, BackendBadger, BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = backend
			b, err := Open(cfg, t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = b.Close() }()
			if err := b.Medium.Set("bgs_jobs", []byte(`[]`)); err != nil {
				t.Fatal(err)
			}
			if (b.Files != nil) != (backend == BackendFile) {
				t.Errorf("Files set for backend %q: %v", backend, b.Files != nil)
			}
			if _, ok := b.Medium.(*Quota); !ok && backend != BackendFile {
				t.Errorf("expected quota wrapper, got %T", b.Medium)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History = true
	dir := t.TempDir()
	b, err := Open(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Close() }()
	if b.History == nil {
		t.Fatal("expected history to be enabled")
	}

	for _, v := range []string{`[]`, `[{"id":"1"}]`, `[{"id":"1"}]`} {
		if err := b.Medium.Set("bgs_users", []byte(v)); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Medium.Set("bgs_jobs", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}

	commits, err := b.History.Log("bgs_users.json", 10)
	if err != nil {
		t.Fatal(err)
	}
	// The third write is identical to the second and records nothing.
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits for bgs_users, got %d: %+v", len(commits), commits)
	}
	if commits[0].Message != "update bgs_users" {
		t.Errorf("unexpected message %q", commits[0].Message)
	}
	all, err := b.History.Log("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 commits overall, got %d", len(all))
	}
}
