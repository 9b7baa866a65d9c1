package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(t.TempDir())
	if err := store.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs failed: %v", err)
	}
	return store
}

func TestSaveUpload(t *testing.T) {
	store := newTestStore(t)

	path, err := store.SaveUpload("job-1", strings.NewReader("media bytes"))
	if err != nil {
		t.Fatalf("save upload failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read upload failed: %v", err)
	}
	if string(data) != "media bytes" {
		t.Fatalf("unexpected upload content %q", data)
	}
}

func TestPrepareJob(t *testing.T) {
	store := newTestStore(t)

	artifacts, err := store.PrepareJob("job-1", "/uploads/job-1.upload")
	if err != nil {
		t.Fatalf("prepare job failed: %v", err)
	}

	info, err := os.Stat(artifacts.Dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected job dir to exist: %v", err)
	}
	if filepath.Dir(artifacts.OutputPath) != artifacts.Dir {
		t.Fatalf("expected output inside job dir, got %s", artifacts.OutputPath)
	}
	if filepath.Dir(artifacts.HLSDir) != artifacts.Dir || filepath.Dir(artifacts.DASHDir) != artifacts.Dir {
		t.Fatalf("expected hls/dash dirs inside job dir")
	}
	if artifacts.InputPath != "/uploads/job-1.upload" {
		t.Fatalf("unexpected input path %s", artifacts.InputPath)
	}
}

func TestResolveAsset(t *testing.T) {
	store := newTestStore(t)
	artifacts, err := store.PrepareJob("job-1", "")
	if err != nil {
		t.Fatalf("prepare job failed: %v", err)
	}
	if err := os.MkdirAll(artifacts.HLSDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	playlist := filepath.Join(artifacts.HLSDir, "index.m3u8")
	if err := os.WriteFile(playlist, []byte("#EXTM3U"), 0o644); err != nil {
		t.Fatalf("write playlist failed: %v", err)
	}

	got, err := store.ResolveAsset(artifacts.HLSDir, "", "index.m3u8")
	if err != nil {
		t.Fatalf("default resolution failed: %v", err)
	}
	if got != playlist {
		t.Fatalf("expected %s, got %s", playlist, got)
	}

	got, err = store.ResolveAsset(artifacts.HLSDir, "index.m3u8", "index.m3u8")
	if err != nil || got != playlist {
		t.Fatalf("explicit resolution failed: %v (%s)", err, got)
	}
}

func TestResolveAssetRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	artifacts, err := store.PrepareJob("job-1", "")
	if err != nil {
		t.Fatalf("prepare job failed: %v", err)
	}
	if err := os.MkdirAll(artifacts.HLSDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	// A sibling secret that a traversal would reach without sanitization.
	secret := filepath.Join(artifacts.Dir, "secret")
	if err := os.WriteFile(secret, []byte("keep out"), 0o644); err != nil {
		t.Fatalf("write secret failed: %v", err)
	}

	for _, name := range []string{
		"../secret",
		"../../secret",
		"..",
		".",
		"/etc/hostname",
		"..\\secret",
	} {
		if got, err := store.ResolveAsset(artifacts.HLSDir, name, "index.m3u8"); err == nil {
			t.Errorf("expected %q to fail, resolved to %s", name, got)
		}
	}
}

func TestRemoveArtifactsIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	inputPath, err := store.SaveUpload("job-1", strings.NewReader("media"))
	if err != nil {
		t.Fatalf("save upload failed: %v", err)
	}
	artifacts, err := store.PrepareJob("job-1", inputPath)
	if err != nil {
		t.Fatalf("prepare job failed: %v", err)
	}
	if err := os.WriteFile(artifacts.OutputPath, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write output failed: %v", err)
	}

	if err := store.RemoveArtifacts(artifacts); err != nil {
		t.Fatalf("first removal failed: %v", err)
	}
	if _, err := os.Stat(artifacts.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected job dir to be gone")
	}
	if _, err := os.Stat(inputPath); !os.IsNotExist(err) {
		t.Fatalf("expected input to be gone")
	}

	if err := store.RemoveArtifacts(artifacts); err != nil {
		t.Fatalf("second removal failed: %v", err)
	}
}
