//go:build linux

package linux

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// prctlFunc is a function variable for the prctl syscall, overridden in tests.
var prctlFunc = unix.Prctl

// setNoNewPrivs sets PR_SET_NO_NEW_PRIVS on the calling thread. The bit is
// inherited across execve and can never be cleared, so neither the target
// nor its children can gain privileges through setuid or file capabilities.
// It is also the precondition for installing seccomp filters and Landlock
// rulesets without CAP_SYS_ADMIN.
func setNoNewPrivs() error {
	if err := prctlFunc(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	return nil
}
