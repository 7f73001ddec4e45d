package assembler

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIdentity is used when no identity file exists.
const DefaultIdentity = "You are a helpful assistant."

// LoadIdentity reads the identity file and appends every non-empty *.md
// file in skillsDir, sorted by name. Missing files are not errors.
func LoadIdentity(identityPath, skillsDir string) (string, error) {
	identity := DefaultIdentity
	if identityPath != "" {
		data, err := os.ReadFile(identityPath)
		switch {
		case err == nil:
			if text := strings.TrimSpace(string(data)); text != "" {
				identity = text
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
	}

	skills, err := loadSkills(skillsDir)
	if err != nil {
		return "", err
	}
	if skills == "" {
		return identity, nil
	}
	return identity + "\n\n--- Skills ---\n" + skills, nil
}

func loadSkills(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	paths, err := doublestar.FilepathGlob(filepath.Join(dir, "*.md"))
	if err != nil {
		return "", err
	}
	slices.Sort(paths)

	var parts []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}
