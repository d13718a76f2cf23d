package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/katha-archive/katha/internal/config"
)

func writeConfig(t *testing.T, path, mode string) {
	t.Helper()
	yaml := strings.Replace(validYAML, "mode: strict", "mode: "+mode, 1)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "katha.yaml")
	writeConfig(t, path, "strict")

	var (
		mu      sync.Mutex
		updated *config.Config
	)
	w, err := config.NewWatcher(path, func(_, cfg *config.Config) {
		mu.Lock()
		updated = cfg
		mu.Unlock()
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Current().Validation.Mode != config.ValidationStrict {
		t.Fatalf("initial mode = %q", w.Current().Validation.Mode)
	}

	writeConfig(t, path, "warn")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := updated
		mu.Unlock()
		if got != nil {
			if got.Validation.Mode != config.ValidationWarn {
				t.Fatalf("reloaded mode = %q", got.Validation.Mode)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher never reported the change")
}

func TestWatcherKeepsLastGoodConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "katha.yaml")
	writeConfig(t, path, "strict")

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Break the file; the watcher must keep serving the previous config.
	if err := os.WriteFile(path, []byte("validation:\n  mode: nonsense\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if w.Current().Validation.Mode != config.ValidationStrict {
		t.Fatalf("mode = %q, want last good config retained", w.Current().Validation.Mode)
	}
}
