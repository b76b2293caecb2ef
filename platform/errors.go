package platform

// Kind identifies which isolation step of Apply failed. The set is closed:
// every SetupError carries exactly one of the constants below.
type Kind int

const (
	// KindNamespaces means the namespace or mount view could not be set up.
	KindNamespaces Kind = iota + 1

	// KindNoNewPrivs means the no_new_privs bit could not be set.
	KindNoNewPrivs

	// KindSeccomp means the syscall filter could not be installed.
	KindSeccomp

	// KindLandlock means the Landlock ruleset could not be enforced.
	KindLandlock
)

// String returns the diagnostic prefix for the kind.
func (k Kind) String() string {
	switch k {
	case KindNamespaces:
		return "error setting up namespaces/mounts"
	case KindNoNewPrivs:
		return "error setting no_new_privs"
	case KindSeccomp:
		return "error installing seccomp filter"
	case KindLandlock:
		return "error running landlock"
	}
	return "unknown sandbox setup error"
}

// SetupError reports the failure of one isolation step.
type SetupError struct {
	// Kind is the failed step.
	Kind Kind
	// Err is the underlying cause, usually wrapping a syscall.Errno.
	Err error
}

// NewSetupError returns a SetupError of the given kind wrapping err.
func NewSetupError(kind Kind, err error) *SetupError {
	return &SetupError{Kind: kind, Err: err}
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
