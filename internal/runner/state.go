package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"markexpr/internal/utils"
)

// loadFileHashes loads the stamps of the last incremental run. They are
// stored as a JSON file under ~/.markexpr scoped by the project ID.
func loadFileHashes(projectID string) (map[string]string, error) {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = make(map[string]string)
	}
	return hashes, nil
}

func saveFileHashes(projectID string, hashes map[string]string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0o644)
}

func fileHashStatePath(projectID string) (string, error) {
	stateDir, err := utils.UserStateDir()
	if err != nil {
		return "", err
	}
	if projectID == "" {
		projectID = "default"
	}
	return filepath.Join(stateDir, fmt.Sprintf("%s_file_hashes.json", projectID)), nil
}

// ClearState removes the incremental state kept for the given roots.
func ClearState(roots ...string) error {
	normalized := make([]string, 0, len(roots))
	for _, root := range roots {
		n, err := utils.NormalizeProjectRoot(root)
		if err != nil {
			return err
		}
		normalized = append(normalized, n)
	}
	projectID, err := utils.ComputeProjectID(normalized...)
	if err != nil {
		return err
	}
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func normalizeFilePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	normalized := filepath.ToSlash(filepath.Clean(abs))
	if runtime.GOOS == "windows" {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}
