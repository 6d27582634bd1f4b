package shaders

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherCoalescesBinaryChanges(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan []string, 4)
	w, err := Watch(dir, 50*time.Millisecond, func(files []string) { changes <- files })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	for _, name := range []string{"lighting.frag.spv", "fullscreen.vert.spv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{3, 2, 35, 7}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case files := <-changes:
		if len(files) != 2 || files[0] != "fullscreen.vert.spv" || files[1] != "lighting.frag.spv" {
			t.Errorf("expected the two binaries in one sorted batch, got %v", files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
