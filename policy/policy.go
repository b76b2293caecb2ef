// Package policy defines the sandbox policy descriptor handed to the
// launcher: which parts of the filesystem are writable and whether the
// network is reachable. Policies travel on the command line as JSON.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhangyunhao116/sandboxexec/internal/envutil"
	"github.com/zhangyunhao116/sandboxexec/internal/pathutil"
)

// ErrInvalidPolicy indicates that an encoded policy could not be decoded or
// failed validation.
var ErrInvalidPolicy = errors.New("policy: invalid sandbox policy")

// Mode selects the variant of a SandboxPolicy.
type Mode string

const (
	// ModeDangerFullAccess disables all restrictions.
	ModeDangerFullAccess Mode = "danger-full-access"

	// ModeReadOnly permits reading the whole filesystem and nothing else.
	ModeReadOnly Mode = "read-only"

	// ModeWorkspaceWrite permits reads everywhere and writes beneath the
	// working directory and the configured writable roots.
	ModeWorkspaceWrite Mode = "workspace-write"
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	return string(m)
}

// valid reports whether m is one of the known modes.
func (m Mode) valid() bool {
	switch m {
	case ModeDangerFullAccess, ModeReadOnly, ModeWorkspaceWrite:
		return true
	}
	return false
}

// SandboxPolicy describes the isolation rules enforced on the launched
// command. The zero value is not valid; use Parse or one of the
// constructors. Fields other than Mode are only meaningful for
// ModeWorkspaceWrite.
type SandboxPolicy struct {
	// Mode is the policy variant.
	Mode Mode

	// WritableRoots lists additional absolute directories the command may
	// write beneath, besides the working directory.
	WritableRoots []string

	// NetworkAccess permits outbound network access.
	NetworkAccess bool

	// ExcludeTmpdirEnvVar drops $TMPDIR from the writable roots.
	ExcludeTmpdirEnvVar bool

	// ExcludeSlashTmp drops /tmp from the writable roots.
	ExcludeSlashTmp bool
}

// DangerFullAccess returns a policy that restricts nothing.
func DangerFullAccess() *SandboxPolicy {
	return &SandboxPolicy{Mode: ModeDangerFullAccess}
}

// ReadOnly returns a policy that allows reads only and no network.
func ReadOnly() *SandboxPolicy {
	return &SandboxPolicy{Mode: ModeReadOnly}
}

// WorkspaceWrite returns a workspace-write policy with the given extra
// writable roots and no network access.
func WorkspaceWrite(roots ...string) *SandboxPolicy {
	return &SandboxPolicy{Mode: ModeWorkspaceWrite, WritableRoots: roots}
}

// wirePolicy is the JSON form of SandboxPolicy.
type wirePolicy struct {
	Mode                Mode     `json:"mode"`
	WritableRoots       []string `json:"writable_roots,omitempty"`
	NetworkAccess       bool     `json:"network_access,omitempty"`
	ExcludeTmpdirEnvVar bool     `json:"exclude_tmpdir_env_var,omitempty"`
	ExcludeSlashTmp     bool     `json:"exclude_slash_tmp,omitempty"`
}

// Parse decodes the JSON form of a policy, as passed on the command line,
// and validates it. The returned error wraps ErrInvalidPolicy.
func Parse(s string) (*SandboxPolicy, error) {
	var p SandboxPolicy
	if err := p.UnmarshalJSON([]byte(s)); err != nil {
		return nil, err
	}
	return &p, nil
}

// String returns the JSON form of the policy.
func (p *SandboxPolicy) String() string {
	data, err := p.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// MarshalJSON implements json.Marshaler.
func (p *SandboxPolicy) MarshalJSON() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(wirePolicy(*p))
}

// UnmarshalJSON implements json.Unmarshaler. Unknown fields and trailing
// data are rejected.
func (p *SandboxPolicy) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wirePolicy
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after policy object", ErrInvalidPolicy)
	}

	decoded := SandboxPolicy(w)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Validate checks the policy for errors. The returned error wraps
// ErrInvalidPolicy.
func (p *SandboxPolicy) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: policy is nil", ErrInvalidPolicy)
	}

	var errs []string

	if !p.Mode.valid() {
		errs = append(errs, fmt.Sprintf("mode: unknown value %q", p.Mode))
	}

	if p.Mode != ModeWorkspaceWrite {
		if len(p.WritableRoots) > 0 || p.NetworkAccess || p.ExcludeTmpdirEnvVar || p.ExcludeSlashTmp {
			errs = append(errs, fmt.Sprintf("mode %q takes no workspace-write fields", p.Mode))
		}
	}

	for i, root := range p.WritableRoots {
		switch {
		case root == "":
			errs = append(errs, fmt.Sprintf("writable_roots[%d]: must not be empty", i))
		case pathutil.ContainsNullByte(root):
			errs = append(errs, fmt.Sprintf("writable_roots[%d]: must not contain null bytes", i))
		case !filepath.IsAbs(root):
			errs = append(errs, fmt.Sprintf("writable_roots[%d]: %q must be an absolute path", i, root))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(errs, "; "))
	}
	return nil
}

// HasFullDiskWriteAccess reports whether the policy allows writing anywhere.
func (p *SandboxPolicy) HasFullDiskWriteAccess() bool {
	return p.Mode == ModeDangerFullAccess
}

// HasFullNetworkAccess reports whether the policy leaves the network open.
func (p *SandboxPolicy) HasFullNetworkAccess() bool {
	switch p.Mode {
	case ModeDangerFullAccess:
		return true
	case ModeWorkspaceWrite:
		return p.NetworkAccess
	default:
		return false
	}
}

// WritableRoot is a directory the sandboxed command may write beneath,
// minus the subpaths that must stay read-only.
type WritableRoot struct {
	// Root is the absolute writable directory.
	Root string

	// ReadOnlySubpaths are entries beneath Root that stay read-only.
	ReadOnlySubpaths []string
}

// statDirFn reports whether a path is an existing directory. Overridden in
// tests.
var statDirFn = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WritableRootsWithCwd returns the writable roots for a command whose policy
// reference directory is cwd. env supplies TMPDIR. Only workspace-write
// policies have writable roots; for full-access policies the whole
// filesystem is writable and nil is returned.
func (p *SandboxPolicy) WritableRootsWithCwd(cwd string, env []string) []WritableRoot {
	if p.Mode != ModeWorkspaceWrite {
		return nil
	}

	roots := make([]string, 0, len(p.WritableRoots)+3)
	roots = append(roots, p.WritableRoots...)
	roots = append(roots, cwd)

	if !p.ExcludeSlashTmp && statDirFn("/tmp") {
		roots = append(roots, "/tmp")
	}
	if !p.ExcludeTmpdirEnvVar {
		if tmpdir, ok := envutil.GetEnv(env, "TMPDIR"); ok && pathutil.IsAbsClean(tmpdir) {
			roots = append(roots, tmpdir)
		}
	}

	seen := make(map[string]bool, len(roots))
	out := make([]WritableRoot, 0, len(roots))
	for _, r := range roots {
		r = filepath.Clean(r)
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, WritableRoot{
			Root:             r,
			ReadOnlySubpaths: pathutil.GitMetadataPaths(r),
		})
	}
	return out
}
