//go:build linux

package linux

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/zhangyunhao116/sandboxexec/policy"
)

// Function variables for mount namespace syscalls, overridden in tests.
var (
	unshareFn = unix.Unshare
	mountFn   = unix.Mount
)

// readOnlySubpaths flattens the protected subpaths of every writable root.
func readOnlySubpaths(roots []policy.WritableRoot) []string {
	var out []string
	for _, r := range roots {
		out = append(out, r.ReadOnlySubpaths...)
	}
	return out
}

// setupReadOnlyMounts gives the calling thread a private mount namespace in
// which every read-only subpath of the writable roots is bind-mounted onto
// itself and remounted read-only. Landlock cannot carve a read-only hole
// out of a writable directory; the bind mount can.
//
// The caller must hold the OS thread locked: the new namespace belongs to
// the calling thread only and reaches the target through execve on that
// thread. Requires CAP_SYS_ADMIN; a user namespace is not an option because
// unshare(CLONE_NEWUSER) refuses multi-threaded callers.
func setupReadOnlyMounts(roots []policy.WritableRoot) error {
	subpaths := readOnlySubpaths(roots)
	if len(subpaths) == 0 {
		return nil
	}

	if err := unshareFn(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("unshare(CLONE_NEWNS): %w", err)
	}

	// Keep our mounts from propagating back into the parent namespace.
	if err := mountFn("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make / private: %w", err)
	}

	for _, p := range subpaths {
		if err := mountFn(p, p, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("bind mount %q: %w", p, err)
		}
		if err := mountFn("", p, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return fmt.Errorf("remount %q read-only: %w", p, err)
		}
	}

	return nil
}
