package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DotEnvFile is the name looked up in each directory passed to LoadDotEnv.
const DotEnvFile = ".env"

// LoadDotEnv loads DotEnvFile from each directory in order. Variables that
// are already set, by the environment or by an earlier file, are kept.
// Missing files are skipped. It returns the files that were loaded.
func LoadDotEnv(dirs ...string) ([]string, error) {
	var loaded []string
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, DotEnvFile)
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, fmt.Errorf("load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// dotEnvDirs is the executable's directory followed by the working directory.
func dotEnvDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return dirs
}
