package platform

import (
	"github.com/zhangyunhao116/sandboxexec/policy"
)

// Applier applies a sandbox policy to the calling thread. Implementations
// narrow privileges irreversibly: once Apply has returned, successfully or
// not, the caller must either exec or exit.
type Applier interface {
	// Name returns a human-readable identifier for this backend
	// (e.g., "linux-landlock").
	Name() string

	// Apply enforces p, using cwd as the policy's reference directory.
	// It returns nil on success. A non-nil result names the single step
	// that failed; earlier steps may already be in force.
	Apply(p *policy.SandboxPolicy, cwd string, opts Options) *SetupError
}

// Options carries pass-through settings for Apply.
type Options struct {
	// EnableBindMounts turns on the experimental read-only bind mounts for
	// protected subpaths of writable roots.
	EnableBindMounts bool

	// Env is the environment the target command will run with. Backends
	// read TMPDIR from it when deriving writable roots.
	Env []string
}
