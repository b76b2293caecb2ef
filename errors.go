package sandboxexec

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors returned by the sandboxexec package.
var (
	// ErrUnsupportedPlatform indicates no policy applier exists for the current OS.
	ErrUnsupportedPlatform = errors.New("sandboxexec: unsupported platform")

	// ErrConfigInvalid indicates the invocation failed validation.
	ErrConfigInvalid = errors.New("sandboxexec: invalid configuration")

	// ErrAlreadyLaunched indicates Run was called twice on the same Launcher.
	ErrAlreadyLaunched = errors.New("sandboxexec: launcher already used")

	// ErrInvalidArgument indicates a command argument contains a NUL byte.
	ErrInvalidArgument = errors.New("sandboxexec: argument contains a NUL byte")

	// ErrNoCommand is returned when the policy was applied but there is
	// nothing to execute. The text is shown to users verbatim.
	ErrNoCommand = errors.New("No command specified to execute.") //nolint:staticcheck // user-facing diagnostic
)

// EncodingError is returned when a command argument cannot be turned into a
// C string. It wraps ErrInvalidArgument.
type EncodingError struct {
	// Index is the position of the argument in the command line.
	Index int
	// Arg is the offending argument.
	Arg string
	// Err is the underlying conversion error.
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to convert argument %d (%q) to a C string: %v", e.Index, e.Arg, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return ErrInvalidArgument
}

// ExecError is returned when replacing the process image failed.
type ExecError struct {
	// Path is the program name as given in the command line.
	Path string
	// Err is the errno reported by execve or the PATH lookup.
	Err error
}

func (e *ExecError) Error() string {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return fmt.Sprintf("failed to execvp %s: %s (os error %d)", e.Path, strerror(errno), int(errno))
	}
	return fmt.Sprintf("failed to execvp %s: %v", e.Path, e.Err)
}

// strerror returns the errno text the way strerror(3) spells it, with a
// leading capital.
func strerror(errno syscall.Errno) string {
	msg := errno.Error()
	if msg == "" || msg[0] < 'a' || msg[0] > 'z' {
		return msg
	}
	return string(msg[0]-'a'+'A') + msg[1:]
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
