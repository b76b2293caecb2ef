package envutil

import (
	"path/filepath"
	"strings"
)

// DefaultPath is the search path execvp uses when PATH is unset.
const DefaultPath = "/bin:/usr/bin"

// GetEnv gets a value from an env slice.
// Returns the value and true if found, or empty string and false if not.
// The first matching entry wins, as with getenv(3).
func GetEnv(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return e[len(prefix):], true
		}
	}
	return "", false
}

// PathList returns the directories of the PATH variable in env, in search
// order. An unset PATH yields DefaultPath; empty elements mean the current
// directory.
func PathList(env []string) []string {
	path, ok := GetEnv(env, "PATH")
	if !ok {
		path = DefaultPath
	}
	dirs := filepath.SplitList(path)
	for i, d := range dirs {
		if d == "" {
			dirs[i] = "."
		}
	}
	return dirs
}
