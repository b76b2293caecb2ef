//go:build unix

package sandboxexec

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"syscall"
	"testing"

	"github.com/zhangyunhao116/sandboxexec/platform"
	"github.com/zhangyunhao116/sandboxexec/policy"
)

// fakeApplier records Apply calls and returns a preset result.
type fakeApplier struct {
	err *platform.SetupError

	calls  int
	policy *policy.SandboxPolicy
	cwd    string
	opts   platform.Options
}

func (f *fakeApplier) Name() string { return "fake" }

func (f *fakeApplier) Apply(p *policy.SandboxPolicy, cwd string, opts platform.Options) *platform.SetupError {
	f.calls++
	f.policy = p
	f.cwd = cwd
	f.opts = opts
	return f.err
}

// execRecorder replaces execFn for the duration of a test.
type execRecorder struct {
	calls int
	path  string
	argv  []string
	env   []string
	err   error
}

func stubExec(t *testing.T, err error) *execRecorder {
	t.Helper()
	rec := &execRecorder{err: err}
	orig := execFn
	t.Cleanup(func() { execFn = orig })
	execFn = func(path string, argv []string, env []string) error {
		rec.calls++
		rec.path = path
		rec.argv = append([]string(nil), argv...)
		rec.env = append([]string(nil), env...)
		return rec.err
	}
	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustInvocation(t *testing.T, p *policy.SandboxPolicy, command ...string) *Invocation {
	t.Helper()
	inv, err := NewInvocation(p, "/work", false, command)
	if err != nil {
		t.Fatalf("NewInvocation() error: %v", err)
	}
	return inv
}

func TestRun_SetupErrorKinds(t *testing.T) {
	kinds := []platform.Kind{
		platform.KindNamespaces,
		platform.KindNoNewPrivs,
		platform.KindSeccomp,
		platform.KindLandlock,
	}

	seen := make(map[string]platform.Kind)
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			rec := stubExec(t, nil)
			cause := syscall.EPERM
			fa := &fakeApplier{err: platform.NewSetupError(kind, cause)}
			l := New(WithApplier(fa), WithLogger(discardLogger()))

			err := l.Run(mustInvocation(t, policy.ReadOnly(), "/bin/true"))

			var serr *platform.SetupError
			if !errors.As(err, &serr) {
				t.Fatalf("error = %v, want *platform.SetupError", err)
			}
			if serr.Kind != kind {
				t.Errorf("Kind = %v, want %v", serr.Kind, kind)
			}
			if !errors.Is(err, cause) {
				t.Errorf("error should wrap %v", cause)
			}
			if fa.calls != 1 {
				t.Errorf("Apply called %d times, want 1", fa.calls)
			}
			if rec.calls != 0 {
				t.Error("exec must not be attempted after a setup failure")
			}
			if got := l.State(); got != StatePolicyFailed {
				t.Errorf("State() = %v, want %v", got, StatePolicyFailed)
			}

			msg := err.Error()
			if !strings.HasPrefix(msg, kind.String()+": ") {
				t.Errorf("message %q should start with %q", msg, kind.String())
			}
			if other, dup := seen[msg]; dup {
				t.Errorf("kinds %v and %v share the message %q", other, kind, msg)
			}
			seen[msg] = kind
		})
	}
}

func TestRun_EmptyCommandAfterPolicy(t *testing.T) {
	rec := stubExec(t, nil)
	fa := &fakeApplier{}
	l := New(WithApplier(fa), WithLogger(discardLogger()))

	err := l.Run(mustInvocation(t, policy.ReadOnly()))
	if !errors.Is(err, ErrNoCommand) {
		t.Fatalf("error = %v, want ErrNoCommand", err)
	}
	if err.Error() != "No command specified to execute." {
		t.Errorf("message = %q", err.Error())
	}
	if fa.calls != 1 {
		t.Errorf("policy should be applied before the empty-command check, Apply calls = %d", fa.calls)
	}
	if rec.calls != 0 {
		t.Error("exec must not be attempted with an empty command")
	}
	if got := l.State(); got != StateExecFailed {
		t.Errorf("State() = %v, want %v", got, StateExecFailed)
	}
}

func TestRun_SetupErrorBeatsEmptyCommand(t *testing.T) {
	stubExec(t, nil)
	fa := &fakeApplier{err: platform.NewSetupError(platform.KindSeccomp, syscall.EINVAL)}
	l := New(WithApplier(fa), WithLogger(discardLogger()))

	err := l.Run(mustInvocation(t, policy.ReadOnly()))
	if errors.Is(err, ErrNoCommand) {
		t.Fatal("setup failure should be reported, not the empty command")
	}
	var serr *platform.SetupError
	if !errors.As(err, &serr) || serr.Kind != platform.KindSeccomp {
		t.Fatalf("error = %v, want seccomp setup error", err)
	}
}

func TestRun_NulArgument(t *testing.T) {
	rec := stubExec(t, nil)
	fa := &fakeApplier{}
	l := New(WithApplier(fa), WithLogger(discardLogger()))

	err := l.Run(mustInvocation(t, policy.ReadOnly(), "echo", "ok", "a\x00b"))

	var eerr *EncodingError
	if !errors.As(err, &eerr) {
		t.Fatalf("error = %v, want *EncodingError", err)
	}
	if eerr.Index != 2 || eerr.Arg != "a\x00b" {
		t.Errorf("EncodingError = {%d %q}, want {2 \"a\\x00b\"}", eerr.Index, eerr.Arg)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("error should match ErrInvalidArgument")
	}
	if rec.calls != 0 {
		t.Error("exec must not be attempted when an argument cannot be encoded")
	}
	if got := l.State(); got != StateExecFailed {
		t.Errorf("State() = %v, want %v", got, StateExecFailed)
	}
}

func TestRun_ExecFailure(t *testing.T) {
	rec := stubExec(t, syscall.ENOENT)
	l := New(WithApplier(&fakeApplier{}), WithLogger(discardLogger()))

	err := l.Run(mustInvocation(t, policy.ReadOnly(), "/nonexistent-binary"))

	var xerr *ExecError
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v, want *ExecError", err)
	}
	want := "failed to execvp /nonexistent-binary: No such file or directory (os error 2)"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
	if rec.calls != 1 {
		t.Errorf("exec calls = %d, want exactly 1", rec.calls)
	}
	if got := l.State(); got != StateExecFailed {
		t.Errorf("State() = %v, want %v", got, StateExecFailed)
	}
}

func TestRun_PassesInvocationThrough(t *testing.T) {
	rec := stubExec(t, syscall.EACCES)
	fa := &fakeApplier{}
	env := []string{"PATH=/bin", "FOO=bar"}
	l := New(WithApplier(fa), WithEnv(env), WithLogger(discardLogger()))

	p := policy.WorkspaceWrite("/data")
	inv, err := NewInvocation(p, "/work", true, []string{"/bin/sh", "-c", "echo \"$FOO\"", "--", "-x"})
	if err != nil {
		t.Fatalf("NewInvocation() error: %v", err)
	}
	_ = l.Run(inv)

	if fa.policy != p {
		t.Error("Apply should receive the invocation's policy pointer")
	}
	if fa.cwd != "/work" {
		t.Errorf("Apply cwd = %q, want /work", fa.cwd)
	}
	if !fa.opts.EnableBindMounts {
		t.Error("Apply should receive EnableBindMounts=true")
	}
	if !reflect.DeepEqual(fa.opts.Env, env) {
		t.Errorf("Apply env = %q, want %q", fa.opts.Env, env)
	}
	if rec.path != "/bin/sh" {
		t.Errorf("exec path = %q, want /bin/sh", rec.path)
	}
	if !reflect.DeepEqual(rec.argv, inv.Command) {
		t.Errorf("exec argv = %q, want %q", rec.argv, inv.Command)
	}
	if !reflect.DeepEqual(rec.env, env) {
		t.Errorf("exec env = %q, want %q", rec.env, env)
	}
}

func TestRun_SingleShot(t *testing.T) {
	stubExec(t, syscall.ENOENT)
	fa := &fakeApplier{}
	l := New(WithApplier(fa), WithLogger(discardLogger()))
	inv := mustInvocation(t, policy.ReadOnly(), "/nonexistent-binary")

	_ = l.Run(inv)
	err := l.Run(inv)
	if !errors.Is(err, ErrAlreadyLaunched) {
		t.Fatalf("second Run error = %v, want ErrAlreadyLaunched", err)
	}
	if fa.calls != 1 {
		t.Errorf("Apply called %d times, want 1", fa.calls)
	}
}

func TestRun_NoApplier(t *testing.T) {
	rec := stubExec(t, nil)
	l := New(WithApplier(nil), WithLogger(discardLogger()))

	err := l.Run(mustInvocation(t, policy.ReadOnly(), "/bin/true"))
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("error = %v, want ErrUnsupportedPlatform", err)
	}
	if rec.calls != 0 {
		t.Error("exec must not be attempted without an applier")
	}
	if got := l.State(); got != StateInit {
		t.Errorf("State() = %v, want %v", got, StateInit)
	}
}

func TestRun_NilInvocation(t *testing.T) {
	l := New(WithApplier(&fakeApplier{}), WithLogger(discardLogger()))
	if err := l.Run(nil); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestRun_LogsTransitions(t *testing.T) {
	stubExec(t, syscall.ENOENT)
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := New(WithApplier(&fakeApplier{}), WithLogger(logger))

	_ = l.Run(mustInvocation(t, policy.ReadOnly(), "/nonexistent-binary"))

	out := buf.String()
	for _, want := range []string{"applier=fake", "to=policy_applied", "to=execing", "to=exec_failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New()
	if l.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if len(l.env) == 0 {
		t.Error("env should default to os.Environ()")
	}
	if got := l.State(); got != StateInit {
		t.Errorf("State() = %v, want %v", got, StateInit)
	}
}

func TestWithEnv_Copies(t *testing.T) {
	env := []string{"A=1"}
	l := New(WithEnv(env))
	env[0] = "A=2"
	if l.env[0] != "A=1" {
		t.Errorf("env[0] = %q, want A=1", l.env[0])
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateInit, "init"},
		{StatePolicyApplying, "policy_applying"},
		{StatePolicyApplied, "policy_applied"},
		{StatePolicyFailed, "policy_failed"},
		{StateExecing, "execing"},
		{StateExecFailed, "exec_failed"},
		{StateReplaced, "replaced"},
		{State(99), "State(99)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int32(tt.s), got, tt.want)
		}
	}
}

func TestSetupStep(t *testing.T) {
	tests := []struct {
		k    platform.Kind
		want string
	}{
		{platform.KindNamespaces, "namespaces"},
		{platform.KindNoNewPrivs, "no_new_privs"},
		{platform.KindSeccomp, "seccomp"},
		{platform.KindLandlock, "landlock"},
		{platform.Kind(0), "unknown"},
	}
	for _, tt := range tests {
		if got := setupStep(tt.k); got != tt.want {
			t.Errorf("setupStep(%d) = %q, want %q", tt.k, got, tt.want)
		}
	}
}
