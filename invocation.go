package sandboxexec

import (
	"fmt"

	"github.com/zhangyunhao116/sandboxexec/internal/pathutil"
	"github.com/zhangyunhao116/sandboxexec/policy"
)

// Invocation is a validated launch request. It is built once at startup and
// never modified afterwards.
type Invocation struct {
	// Policy is the sandbox policy to apply. The launcher does not inspect it.
	Policy *policy.SandboxPolicy

	// PolicyCwd is the absolute directory relative to which the policy is
	// interpreted.
	PolicyCwd string

	// EnableBindMounts asks the applier to use bind mounts for read-only
	// subpaths.
	EnableBindMounts bool

	// Command is the program and its arguments. It may be empty; that is
	// reported only after the policy has been applied.
	Command []string
}

// NewInvocation validates its inputs and returns an Invocation. The command
// is copied verbatim and never re-split or re-quoted.
func NewInvocation(p *policy.SandboxPolicy, cwd string, enableBindMounts bool, command []string) (*Invocation, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: sandbox policy is nil", ErrConfigInvalid)
	}
	if cwd == "" {
		return nil, fmt.Errorf("%w: sandbox policy cwd is empty", ErrConfigInvalid)
	}
	if !pathutil.IsAbsClean(cwd) {
		return nil, fmt.Errorf("%w: sandbox policy cwd %q must be an absolute path without null bytes", ErrConfigInvalid, cwd)
	}
	return &Invocation{
		Policy:           p,
		PolicyCwd:        cwd,
		EnableBindMounts: enableBindMounts,
		Command:          append([]string(nil), command...),
	}, nil
}
