package runner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"markexpr/internal/utils"
)

func TestNormalizeFilePath(t *testing.T) {
	t.Parallel()

	if got := normalizeFilePath("  "); got != "" {
		t.Fatalf("normalizeFilePath(whitespace)=%q, want empty", got)
	}

	dir := t.TempDir()
	absInput := filepath.Join(dir, "a", "..", "b", "file.js")

	gotAbs := normalizeFilePath(absInput)
	expectedAbs := filepath.ToSlash(filepath.Clean(absInput))
	if runtime.GOOS == "windows" {
		expectedAbs = strings.ToLower(expectedAbs)
	}
	if gotAbs != expectedAbs {
		t.Fatalf("normalizeFilePath(abs)=%q, want %q", gotAbs, expectedAbs)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	relInput := filepath.Join(".", "rel", "..", "rel", "file.js")
	expectedRel := filepath.ToSlash(filepath.Clean(filepath.Join(wd, "rel", "file.js")))
	if runtime.GOOS == "windows" {
		expectedRel = strings.ToLower(expectedRel)
	}
	if got := normalizeFilePath(relInput); got != expectedRel {
		t.Fatalf("normalizeFilePath(rel)=%q, want %q", got, expectedRel)
	}
}

func TestFileHashStateLifecycle(t *testing.T) {
	// This test sets HOME/USERPROFILE, so do not run in parallel.
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	root := t.TempDir()
	normalized, err := utils.NormalizeProjectRoot(root)
	if err != nil {
		t.Fatalf("NormalizeProjectRoot: %v", err)
	}
	projectID, err := utils.ComputeProjectID(normalized)
	if err != nil {
		t.Fatalf("ComputeProjectID: %v", err)
	}

	// Missing state file should return an empty map (not nil).
	loaded, err := loadFileHashes(projectID)
	if err != nil {
		t.Fatalf("loadFileHashes (missing): %v", err)
	}
	if loaded == nil || len(loaded) != 0 {
		t.Fatalf("loadFileHashes (missing)=%v, want empty map", loaded)
	}

	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		t.Fatalf("fileHashStatePath: %v", err)
	}
	if base := filepath.Base(statePath); base != projectID+"_file_hashes.json" {
		t.Fatalf("state file base=%q, want %q", base, projectID+"_file_hashes.json")
	}
	if parent := filepath.Base(filepath.Dir(statePath)); parent != ".markexpr" {
		t.Fatalf("state file dir base=%q, want %q", parent, ".markexpr")
	}

	if err := saveFileHashes(projectID, map[string]string{"/abs/app.js": "stamp"}); err != nil {
		t.Fatalf("saveFileHashes: %v", err)
	}
	loaded, err = loadFileHashes(projectID)
	if err != nil {
		t.Fatalf("loadFileHashes: %v", err)
	}
	if loaded["/abs/app.js"] != "stamp" {
		t.Fatalf("loaded stamp=%q, want %q", loaded["/abs/app.js"], "stamp")
	}

	if err := ClearState(root); err != nil {
		t.Fatalf("ClearState: %v", err)
	}
	if _, err := os.Stat(statePath); err == nil {
		t.Fatalf("expected state file to be removed")
	}

	// Clearing again should be a no-op.
	if err := ClearState(root); err != nil {
		t.Fatalf("ClearState (missing): %v", err)
	}
}

func TestFileHashStatePathDefaultProjectID(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	statePath, err := fileHashStatePath("")
	if err != nil {
		t.Fatalf("fileHashStatePath: %v", err)
	}
	if base := filepath.Base(statePath); base != "default_file_hashes.json" {
		t.Fatalf("state file base=%q, want %q", base, "default_file_hashes.json")
	}
}
