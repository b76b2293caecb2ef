//go:build linux

package linux

import (
	"runtime"

	"github.com/zhangyunhao116/sandboxexec/platform"
	"github.com/zhangyunhao116/sandboxexec/policy"
)

// Function variables for the isolation steps, overridden in tests.
var (
	setupReadOnlyMountsFn   = setupReadOnlyMounts
	setNoNewPrivsFn         = setNoNewPrivs
	installNetworkSeccompFn = installNetworkSeccomp
	applyLandlockFn         = applyLandlock
)

// Platform implements platform.Applier using a private mount namespace,
// no_new_privs, seccomp BPF filters and Landlock.
type Platform struct {
	kernelVersion KernelVersion
	landlock      LandlockInfo
}

var _ platform.Applier = (*Platform)(nil)

// New creates a new Platform, detecting kernel version and Landlock
// support at construction time.
func New() *Platform {
	// A zero KernelVersion only degrades diagnostics.
	kv, _ := DetectKernelVersion()
	return &Platform{
		kernelVersion: kv,
		landlock:      DetectLandlock(),
	}
}

// Name returns the platform identifier.
func (l *Platform) Name() string {
	return "linux-landlock"
}

// Apply enforces p on the calling thread. The steps run in a fixed order
// and the first failure stops the sequence:
//
//  1. read-only bind mounts (only with opts.EnableBindMounts and a policy
//     that restricts writes)
//  2. PR_SET_NO_NEW_PRIVS
//  3. network seccomp filters (unless the policy allows the network)
//  4. Landlock (unless the policy allows writing everywhere)
//
// A policy with full disk and network access changes nothing.
//
// Apply locks the goroutine to its OS thread and never unlocks it; the
// caller is expected to exec from the same goroutine.
func (l *Platform) Apply(p *policy.SandboxPolicy, cwd string, opts platform.Options) *platform.SetupError {
	runtime.LockOSThread()

	fullWrite := p.HasFullDiskWriteAccess()
	fullNetwork := p.HasFullNetworkAccess()
	if fullWrite && fullNetwork {
		return nil
	}

	roots := p.WritableRootsWithCwd(cwd, opts.Env)

	if opts.EnableBindMounts && !fullWrite {
		if err := setupReadOnlyMountsFn(roots); err != nil {
			return platform.NewSetupError(platform.KindNamespaces, err)
		}
	}

	if err := setNoNewPrivsFn(); err != nil {
		return platform.NewSetupError(platform.KindNoNewPrivs, err)
	}

	if !fullNetwork {
		if err := installNetworkSeccompFn(); err != nil {
			return platform.NewSetupError(platform.KindSeccomp, err)
		}
	}

	if !fullWrite {
		if err := applyLandlockFn(roots, l.kernelVersion, l.landlock); err != nil {
			return platform.NewSetupError(platform.KindLandlock, err)
		}
	}

	return nil
}
