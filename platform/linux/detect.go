//go:build linux

package linux

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// KernelVersion represents a parsed Linux kernel version.
type KernelVersion struct {
	Major, Minor, Patch int
}

// unameFn is a function variable for uname(2), overridden in tests.
var unameFn = unix.Uname

// DetectKernelVersion parses the running kernel release reported by uname(2).
// /proc is not consulted because it may be hidden inside the sandbox.
func DetectKernelVersion() (KernelVersion, error) {
	var uts unix.Utsname
	if err := unameFn(&uts); err != nil {
		return KernelVersion{}, fmt.Errorf("uname: %w", err)
	}
	release := unix.ByteSliceToString(uts.Release[:])
	if release == "" {
		return KernelVersion{}, errors.New("uname: empty release")
	}
	return ParseKernelVersion(release)
}

// ParseKernelVersion parses a kernel version string like "5.15.0-generic" into
// a KernelVersion. Only the major.minor.patch components are extracted; any
// trailing suffix (e.g., "-generic") is ignored.
func ParseKernelVersion(s string) (KernelVersion, error) {
	// Strip everything after the first hyphen, plus or space.
	if idx := strings.IndexAny(s, "-+ "); idx != -1 {
		s = s[:idx]
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return KernelVersion{}, fmt.Errorf("invalid kernel version: %q", s)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return KernelVersion{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return KernelVersion{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}

	var patch int
	if len(parts) == 3 && parts[2] != "" {
		patch, err = strconv.Atoi(parts[2])
		if err != nil {
			return KernelVersion{}, fmt.Errorf("invalid patch version in %q: %w", s, err)
		}
	}

	return KernelVersion{Major: major, Minor: minor, Patch: patch}, nil
}

// AtLeast reports whether v is at least major.minor.
func (v KernelVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// String returns the version in "major.minor.patch" format.
func (v KernelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
