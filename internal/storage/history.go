// Records every durable write of a FileStore as a git commit, using go-git.

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	historyName  = "bgstudio"
	historyEmail = "bgstudio@localhost"
)

// Commit is one recorded write.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// History is a git repository rooted at a FileStore directory.
type History struct {
	dir  string
	repo *gogit.Repository
	mu   sync.Mutex
}

// OpenHistory opens the git repository in dir, initializing it if needed.
func OpenHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		// Not a repo yet — initialize.
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = historyName
		cfg.User.Email = historyEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &History{dir: dir, repo: repo}, nil
}

// Commit stages file (relative to the repository root) and commits it.
// Nothing is committed when the file is unchanged.
func (h *History) Commit(file, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, err := h.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := os.Stat(filepath.Join(h.dir, file)); os.IsNotExist(err) {
		if _, err := w.Remove(file); err != nil {
			// Never committed; nothing to record.
			return nil
		}
	} else if _, err := w.Add(file); err != nil {
		return fmt.Errorf("failed to stage %s: %w", file, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	// Unchanged files are absent from the status map.
	if s, ok := status[file]; !ok || s.Staging == gogit.Unmodified || s.Staging == gogit.Untracked {
		return nil
	}
	now := time.Now()
	sig := &object.Signature{Name: historyName, Email: historyEmail, When: now}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Log returns up to n commits touching file, newest first.
// An empty file returns commits for the whole repository.
func (h *History) Log(file string, n int) ([]Commit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > 1000 {
		n = 1000
	}
	opts := &gogit.LogOptions{}
	if file != "" {
		opts.FileName = &file
	}
	iter, err := h.repo.Log(opts)
	if err != nil {
		return nil, nil // no commits yet is not an error
	}
	defer iter.Close()

	var commits []Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			When:    c.Committer.When,
		})
	}
	return commits, nil
}
