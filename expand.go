package posemisc

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading ~ in path against the current user's home
// directory. Paths without the prefix, and paths on systems where the home
// directory is unknowable, come back unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, path[2:])
}
