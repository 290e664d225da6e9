package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "MARKEXPR_CONFIG"

// DefaultFileNames are looked up, in order, by Discover.
var DefaultFileNames = []string{".markexpr.yaml", ".markexpr.yml", ".markexpr.json"}

// Load reads and parses the configuration file at path. The format is taken
// from the file extension; anything that is not .yaml/.yml is read as JSON.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover resolves the config file to use: the explicit path if given, then
// $MARKEXPR_CONFIG, then the first default file name present in dir. It
// returns an empty path and no error when nothing is found.
func Discover(explicit, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if path := Get(EnvConfigPath); path != "" {
		return path, nil
	}
	for _, name := range DefaultFileNames {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

// LoadFromUserConfig loads ~/.markexpr/config.env and ./.env into the process
// environment. Variables that are already set win over file values.
func LoadFromUserConfig() error {
	var files []string
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".markexpr", "config.env"))
	}
	files = append(files, ".env")

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
