// Package scratch manages per-request working directories. Every directory
// is removed when its request finishes, success or not.
package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// Manager allocates uniquely named scratch directories under one root.
type Manager struct {
	root string
	seq  atomic.Uint64
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// WithScratch creates a scratch directory, runs fn with its path, and
// removes the directory afterwards regardless of fn's outcome. Removal
// failures are logged, never surfaced.
func (m *Manager) WithScratch(requestID string, fn func(dir string) error) error {
	dir, err := m.create(requestID)
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("scratch cleanup failed", "dir", dir, "error", rmErr)
		}
	}()
	return fn(dir)
}

func (m *Manager) create(requestID string) (string, error) {
	dir := filepath.Join(m.root, m.name(requestID))
	err := os.Mkdir(dir, 0o755)
	if os.IsExist(err) {
		// Token collision is near-impossible but cheap to survive once.
		dir = filepath.Join(m.root, m.name(requestID))
		err = os.Mkdir(dir, 0o755)
	}
	if err != nil {
		return "", err
	}
	return dir, nil
}

// name combines a random token with a process-scoped counter so two
// concurrent requests can never share a directory.
func (m *Manager) name(requestID string) string {
	token := uuid.NewString()[:8]
	n := m.seq.Add(1)
	if requestID == "" {
		return fmt.Sprintf("req_%s_%d", token, n)
	}
	return fmt.Sprintf("%s_%s_%d", requestID, token, n)
}
