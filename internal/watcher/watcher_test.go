package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collector records callback invocations.
type collector struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
}

func (c *collector) ingest(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingested = append(c.ingested, path)
}

func (c *collector) remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, path)
}

func (c *collector) waitIngested(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.ingested)
		got := append([]string(nil), c.ingested...)
		c.mu.Unlock()
		if n >= want {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Fatalf("ingested %d files, want %d: %v", len(c.ingested), want, c.ingested)
	return nil
}

func startWatcher(t *testing.T, c *collector) *Watcher {
	t.Helper()
	w := New(c.ingest, c.remove, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_IngestsCreatedFile(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := c.waitIngested(t, 1)
	if filepath.Base(got[0]) != "doc.txt" {
		t.Errorf("ingested %v", got)
	}
}

func TestWatcher_IgnoresUnsupportedExtensions(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "doc.md"), []byte("# hi"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := c.waitIngested(t, 1)
	for _, p := range got {
		if filepath.Ext(p) == ".png" {
			t.Errorf("unsupported file ingested: %s", p)
		}
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	path := filepath.Join(dir, "doc.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("burst"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.waitIngested(t, 1)
	time.Sleep(200 * time.Millisecond)
	c.mu.Lock()
	n := len(c.ingested)
	c.mu.Unlock()
	if n != 1 {
		t.Errorf("ingested %d times for one write burst", n)
	}
}

func TestWatcher_RemoveCallback(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.removed)
		c.mu.Unlock()
		if n >= 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("remove callback never fired")
}

func TestWatcher_IngestExisting(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	c.waitIngested(t, 2)
}

func TestWatcher_DirectoriesRoundTrip(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir1, dir2 := t.TempDir(), t.TempDir()

	if err := w.AddDirectory(dir1, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}
	if err := w.AddDirectory(dir2, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}
	// Adding a root twice is a no-op.
	if err := w.AddDirectory(dir1, false); err != nil {
		t.Fatalf("AddDirectory twice: %v", err)
	}
	if got := w.Directories(); len(got) != 2 {
		t.Errorf("directories = %v", got)
	}

	if err := w.RemoveDirectory(dir1); err != nil {
		t.Fatalf("RemoveDirectory: %v", err)
	}
	got := w.Directories()
	if len(got) != 1 || got[0] != filepath.Clean(dir2) {
		t.Errorf("directories = %v", got)
	}

	// Events under the removed root no longer fire.
	if err := os.WriteFile(filepath.Join(dir1, "late.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	c.mu.Lock()
	n := len(c.ingested)
	c.mu.Unlock()
	if n != 0 {
		t.Errorf("event fired for removed root: %v", c.ingested)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("deep"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := c.waitIngested(t, 1)
	if filepath.Base(got[0]) != "deep.txt" {
		t.Errorf("ingested %v", got)
	}
}

func TestWatcher_StopDuringEventBurst(t *testing.T) {
	c := &collector{}
	w := startWatcher(t, c)
	dir := t.TempDir()
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	// Keep events flowing while Stop runs so the loop is mid-handle when the
	// fsnotify handle goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			path := filepath.Join(dir, "burst.txt")
			if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
				return
			}
		}
	}()

	time.Sleep(10 * time.Millisecond)
	w.Stop()
	w.Stop() // idempotent
	<-done

	// Starting again after Stop must work on a fresh handle.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	w.Stop()
}
