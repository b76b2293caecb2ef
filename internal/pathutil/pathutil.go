// Package pathutil provides path helpers for deriving sandbox rules: git
// metadata detection beneath writable roots and path sanity checks.
package pathutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Git Metadata Detection
// ---------------------------------------------------------------------------

// gitdirPrefix is the first token of a worktree's .git pointer file.
const gitdirPrefix = "gitdir:"

// IsGitWorktree checks if the .git entry at the given path is a file
// (indicating a git worktree) rather than a directory.
func IsGitWorktree(dir string) bool {
	gitPath := filepath.Join(dir, ".git")
	info, err := os.Lstat(gitPath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ReadGitdirPointer reads the "gitdir: <path>" line of the .git file in dir
// and returns the referenced directory. Relative targets are resolved
// against dir.
func ReadGitdirPointer(dir string) (string, error) {
	f, err := os.Open(filepath.Join(dir, ".git"))
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, gitdirPrefix) {
			continue
		}
		target := strings.TrimSpace(strings.TrimPrefix(line, gitdirPrefix))
		if target == "" {
			break
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		return filepath.Clean(target), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("pathutil: no %q line in %s", gitdirPrefix, filepath.Join(dir, ".git"))
}

// GitMetadataPaths returns the git metadata entries beneath root that must
// stay read-only even when root itself is writable: the .git entry and, for
// a worktree, the git directory its pointer file references. Returns nil when
// root has no .git entry.
func GitMetadataPaths(root string) []string {
	gitPath := filepath.Join(root, ".git")
	if _, err := os.Lstat(gitPath); err != nil {
		return nil
	}
	paths := []string{gitPath}
	if IsGitWorktree(root) {
		// An unreadable pointer still leaves the file itself protected.
		if target, err := ReadGitdirPointer(root); err == nil {
			if _, err := os.Stat(target); err == nil {
				paths = append(paths, target)
			}
		}
	}
	return paths
}

// ---------------------------------------------------------------------------
// Path Helpers
// ---------------------------------------------------------------------------

// ContainsNullByte returns true if the string contains a null byte.
func ContainsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00')
}

// IsAbsClean reports whether p is absolute and free of null bytes, the
// minimum required of any path handed to the kernel as a sandbox reference.
func IsAbsClean(p string) bool {
	return p != "" && filepath.IsAbs(p) && !ContainsNullByte(p)
}
