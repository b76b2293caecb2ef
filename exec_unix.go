//go:build unix

package sandboxexec

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/zhangyunhao116/sandboxexec/internal/envutil"
)

// Function variables for process replacement and the PATH search,
// overridden in tests. execFn only returns on failure.
var (
	execFn   = unix.Exec
	accessFn = unix.Access
	statFn   = unix.Stat
)

// checkCommand converts every argument to a C string the way execve needs
// them, so an embedded NUL byte is reported with its position before any
// exec is attempted. execve itself would only say EINVAL.
func checkCommand(command []string) error {
	for i, arg := range command {
		if _, err := unix.BytePtrFromString(arg); err != nil {
			return &EncodingError{Index: i, Arg: arg, Err: err}
		}
	}
	return nil
}

// lookPath resolves name the way execvp does: a name containing a slash is
// used as is, anything else is searched for in the PATH of env. A candidate
// that exists but is not executable is remembered so the caller sees EACCES
// rather than ENOENT when nothing better turns up.
func lookPath(name string, env []string) (string, error) {
	if name == "" {
		return "", unix.ENOENT
	}
	if strings.Contains(name, "/") {
		return name, nil
	}
	var lastErr error = unix.ENOENT
	for _, dir := range envutil.PathList(env) {
		candidate := filepath.Join(dir, name)
		if !strings.Contains(candidate, "/") {
			candidate = "./" + candidate
		}
		var st unix.Stat_t
		if err := statFn(candidate, &st); err != nil {
			continue
		}
		if st.Mode&unix.S_IFMT == unix.S_IFDIR {
			lastErr = unix.EACCES
			continue
		}
		if err := accessFn(candidate, unix.X_OK); err != nil {
			lastErr = unix.EACCES
			continue
		}
		return candidate, nil
	}
	return "", lastErr
}

// shellPath runs files the kernel refuses with ENOEXEC.
const shellPath = "/bin/sh"

// execCommand resolves command[0] and replaces the process image with it.
// As with execvp, a file the kernel cannot execute (ENOEXEC, typically a
// script without a #! line) is run again through /bin/sh. On success it does
// not return. Any error it returns is an *ExecError carrying the errno.
func execCommand(command []string, env []string) error {
	path, err := lookPath(command[0], env)
	if err != nil {
		return &ExecError{Path: command[0], Err: err}
	}
	err = execFn(path, command, env)
	if errors.Is(err, unix.ENOEXEC) {
		argv := append([]string{shellPath, path}, command[1:]...)
		err = execFn(shellPath, argv, env)
	}
	if err == nil {
		// execve returning at all is a failure.
		err = unix.EINVAL
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		err = errno
	}
	return &ExecError{Path: command[0], Err: err}
}
