package sandboxexec

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/zhangyunhao116/sandboxexec/platform"
)

// defaultApplierFn returns the policy applier for the running OS. It returns
// nil where no applier exists and is replaced by an init function on
// supported platforms.
var defaultApplierFn = func() platform.Applier { return nil }

// State is the phase a Launcher is in.
type State int32

const (
	// StateInit is the state of a Launcher that has not been run.
	StateInit State = iota

	// StatePolicyApplying means the applier is narrowing privileges.
	StatePolicyApplying

	// StatePolicyApplied means the sandbox is in place and nothing has been
	// executed yet.
	StatePolicyApplied

	// StatePolicyFailed means the applier reported a setup error. The
	// process may be partially restricted and must exit.
	StatePolicyFailed

	// StateExecing means execve is being attempted.
	StateExecing

	// StateExecFailed means the command could not be run.
	StateExecFailed

	// StateReplaced means the process image was replaced. It is never
	// observed from inside the process.
	StateReplaced
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePolicyApplying:
		return "policy_applying"
	case StatePolicyApplied:
		return "policy_applied"
	case StatePolicyFailed:
		return "policy_failed"
	case StateExecing:
		return "execing"
	case StateExecFailed:
		return "exec_failed"
	case StateReplaced:
		return "replaced"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Launcher applies a sandbox policy and then replaces the current process
// with a command. A Launcher runs at most once.
type Launcher struct {
	applier platform.Applier
	env     []string
	logger  *slog.Logger
	state   atomic.Int32
}

// New returns a Launcher for the running platform.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		applier: defaultApplierFn(),
		env:     os.Environ(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// State reports the phase the launcher is in.
func (l *Launcher) State() State {
	return State(l.state.Load())
}

// Run applies inv.Policy to the calling thread and execs inv.Command.
//
// On success Run does not return. Otherwise the error is one of:
// *platform.SetupError when the policy could not be applied, ErrNoCommand
// when the command line is empty, *EncodingError when an argument contains
// a NUL byte, *ExecError when execve failed, ErrUnsupportedPlatform or
// ErrAlreadyLaunched. In every case the caller must exit without running
// anything else: the process may already be partially sandboxed.
//
// Run locks the calling goroutine to its OS thread and never unlocks it, so
// thread-scoped restrictions are still in force when execve runs.
func (l *Launcher) Run(inv *Invocation) error {
	if inv == nil {
		return fmt.Errorf("%w: invocation is nil", ErrConfigInvalid)
	}
	if l.applier == nil {
		return ErrUnsupportedPlatform
	}
	if !l.state.CompareAndSwap(int32(StateInit), int32(StatePolicyApplying)) {
		return ErrAlreadyLaunched
	}
	runtime.LockOSThread()

	l.logger.Debug("applying sandbox policy",
		"applier", l.applier.Name(),
		"policy", inv.Policy.String(),
		"cwd", inv.PolicyCwd,
		"bind_mounts", inv.EnableBindMounts)

	opts := platform.Options{
		EnableBindMounts: inv.EnableBindMounts,
		Env:              l.env,
	}
	if serr := l.applier.Apply(inv.Policy, inv.PolicyCwd, opts); serr != nil {
		l.setState(StatePolicyFailed)
		l.logger.Debug("sandbox setup failed", "step", setupStep(serr.Kind), "error", serr.Err)
		return serr
	}
	l.setState(StatePolicyApplied)

	if len(inv.Command) == 0 {
		l.setState(StateExecFailed)
		return ErrNoCommand
	}
	if err := checkCommand(inv.Command); err != nil {
		l.setState(StateExecFailed)
		return err
	}

	l.setState(StateExecing)
	err := execCommand(inv.Command, l.env)
	l.setState(StateExecFailed)
	return err
}

func (l *Launcher) setState(s State) {
	prev := State(l.state.Swap(int32(s)))
	l.logger.Debug("launcher state", "from", prev.String(), "to", s.String())
}

// setupStep names the isolation step that produced a setup error.
func setupStep(k platform.Kind) string {
	switch k {
	case platform.KindNamespaces:
		return "namespaces"
	case platform.KindNoNewPrivs:
		return "no_new_privs"
	case platform.KindSeccomp:
		return "seccomp"
	case platform.KindLandlock:
		return "landlock"
	default:
		return "unknown"
	}
}
