package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"coverage":     true,
	".turbo":       true,
	".cache":       true,
}

// GetAllSourceFiles walks rootPath and returns the files accepted by include.
// Well-known dependency and build directories and paths matched by the
// root-level .gitignore are skipped. The result is in lexical order.
func GetAllSourceFiles(rootPath string, include func(path string) bool) ([]string, error) {
	var files []string
	ignorePatterns := loadGitIgnorePatterns(rootPath)
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path != rootPath && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if isIgnoredPath(relPath, ignorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if isIgnoredPath(relPath, ignorePatterns) {
			return nil
		}
		if include == nil || include(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// UserStateDir returns ~/.markexpr, creating it if needed.
func UserStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".markexpr")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// NormalizeProjectRoot returns the cleaned absolute form of root with symlinks
// resolved where possible.
func NormalizeProjectRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// ComputeProjectID derives a stable identifier from a set of normalized
// roots. The order of roots does not matter.
func ComputeProjectID(roots ...string) (string, error) {
	if len(roots) == 0 {
		return "", fmt.Errorf("no project roots")
	}
	keys := make([]string, len(roots))
	for i, root := range roots {
		key := filepath.ToSlash(filepath.Clean(root))
		if runtime.GOOS == "windows" {
			key = strings.ToLower(key)
		}
		keys[i] = key
	}
	sort.Strings(keys)
	return HashContent(strings.Join(keys, "\n"))[:16], nil
}

// loadGitIgnorePatterns reads the root-level .gitignore (if present) and
// returns a list of non-empty, non-comment patterns.
func loadGitIgnorePatterns(rootPath string) []string {
	gitIgnorePath := filepath.Join(rootPath, ".gitignore")
	data, err := os.ReadFile(gitIgnorePath)
	if err != nil {
		return nil
	}

	lines := strings.Split(string(data), "\n")
	var patterns []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// isIgnoredPath applies a minimal subset of .gitignore semantics suitable for
// skipping heavy directories like node_modules/ and common file patterns. It
// treats patterns as root-relative against the provided relPath.
func isIgnoredPath(relPath string, patterns []string) bool {
	relPath = strings.TrimPrefix(relPath, "./")
	relPath = strings.TrimSpace(relPath)
	if relPath == "" {
		return false
	}

	relPath = filepath.ToSlash(relPath)

	for _, pattern := range patterns {
		p := strings.TrimSpace(pattern)
		if p == "" {
			continue
		}

		p = filepath.ToSlash(p)

		// Directory-style pattern, e.g. "node_modules/".
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimSuffix(p, "/")
			dir = strings.TrimPrefix(dir, "./")
			if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
				return true
			}
			continue
		}

		// Use filepath.Match for glob-style patterns.
		if ok, _ := filepath.Match(p, relPath); ok {
			return true
		}

		// Bare name pattern like "node_modules" or "dist" without slashes or
		// wildcards – treat as directory segment match anywhere in the path.
		if !strings.Contains(p, "/") && !strings.ContainsAny(p, "*?[") {
			segment := "/" + p + "/"
			if strings.Contains("/"+relPath+"/", segment) {
				return true
			}
		}
	}

	return false
}
