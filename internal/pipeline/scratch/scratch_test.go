package scratch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWithScratchCreatesAndRemoves(t *testing.T) {
	m := NewManager(t.TempDir())

	var got string
	err := m.WithScratch("abc", func(dir string) error {
		got = dir
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("scratch dir missing during fn: %v", err)
		}
		return os.WriteFile(filepath.Join(dir, "work.bin"), []byte("x"), 0o644)
	})
	if err != nil {
		t.Fatalf("WithScratch: %v", err)
	}
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatalf("scratch dir should be gone, stat err = %v", err)
	}
}

func TestWithScratchRemovesOnError(t *testing.T) {
	m := NewManager(t.TempDir())

	var got string
	wantErr := errors.New("processing failed")
	err := m.WithScratch("abc", func(dir string) error {
		got = dir
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want the fn error", err)
	}
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatalf("scratch dir should be gone after failure, stat err = %v", err)
	}
}

func TestConcurrentScratchDirsAreDistinct(t *testing.T) {
	m := NewManager(t.TempDir())

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.WithScratch("same-request", func(dir string) error {
				mu.Lock()
				if seen[dir] {
					t.Errorf("duplicate scratch dir %s", dir)
				}
				seen[dir] = true
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if len(seen) != 16 {
		t.Fatalf("got %d distinct dirs, want 16", len(seen))
	}
}

func TestEmptyRequestID(t *testing.T) {
	m := NewManager(t.TempDir())
	err := m.WithScratch("", func(dir string) error {
		if filepath.Base(dir) == "" {
			t.Fatal("empty dir name")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScratch: %v", err)
	}
}
