package sandboxexec

import (
	"log/slog"

	"github.com/zhangyunhao116/sandboxexec/platform"
)

// Option configures a Launcher.
type Option func(*Launcher)

// WithApplier replaces the platform's policy applier. Passing nil makes
// Run fail with ErrUnsupportedPlatform.
func WithApplier(a platform.Applier) Option {
	return func(l *Launcher) {
		l.applier = a
	}
}

// WithLogger sets the logger used for state transitions. A nil logger
// means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// WithEnv sets the environment handed to the policy applier and to the
// new process image. The default is os.Environ() at the time New is called.
func WithEnv(env []string) Option {
	cpy := append([]string(nil), env...)
	return func(l *Launcher) {
		l.env = cpy
	}
}
