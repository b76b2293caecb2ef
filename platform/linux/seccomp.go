//go:build linux

package linux

import (
	"fmt"
	"runtime"
	"unsafe"

	seccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// seccomp constants.
const (
	seccompSetModeFilter   = 1 // SECCOMP_SET_MODE_FILTER
	seccompFilterFlagTSync = 1 // SECCOMP_FILTER_FLAG_TSYNC

	seccompRetAllow       = 0x7fff0000
	seccompRetErrno       = 0x00050000
	seccompRetKillProcess = 0x80000000

	// Offsets into struct seccomp_data.
	seccompDataNrOffset   = 0
	seccompDataArchOffset = 4
	seccompDataArg0Offset = 16
)

// Architecture constants for GOARCH strings.
const (
	archAMD64 = "amd64"
	archARM64 = "arm64"
)

// goarch is the architecture the filters are built for, overridden in tests.
var goarch = runtime.GOARCH

// deniedNetworkSyscalls fail with EPERM once the network filter is in place.
// recvfrom and sendmsg/recvmsg stay available so tools talking over an
// inherited socketpair keep working; ptrace is listed so a sandboxed process
// cannot drive a sibling that still has network access.
var deniedNetworkSyscalls = []string{
	"connect",
	"accept",
	"accept4",
	"bind",
	"listen",
	"getpeername",
	"getsockname",
	"shutdown",
	"sendto",
	"sendmmsg",
	"recvmmsg",
	"getsockopt",
	"setsockopt",
	"ptrace",
}

// Function variables for loading filters, overridden in tests to avoid
// irreversible process changes.
var (
	loadNamedFilterFn = seccomp.LoadFilter
	seccompSyscallFn  = unix.Syscall
)

// archInfo returns the audit architecture and syscall table for goarch.
// Only amd64 and arm64 are supported: elsewhere socket calls may be
// multiplexed through socketcall(2) and would slip past the domain check.
func archInfo() (*arch.Info, error) {
	switch goarch {
	case archAMD64, archARM64:
	default:
		return nil, fmt.Errorf("unsupported architecture for seccomp: %s", goarch)
	}
	info, err := arch.GetInfo(goarch)
	if err != nil {
		return nil, fmt.Errorf("syscall table for %s: %w", goarch, err)
	}
	return info, nil
}

// networkNameFilter returns the go-seccomp-bpf filter that denies the
// network syscalls by name and is synchronised to every thread.
func networkNameFilter() seccomp.Filter {
	return seccomp.Filter{
		NoNewPrivs: true,
		Flag:       seccomp.FilterFlagTSync,
		Policy: seccomp.Policy{
			DefaultAction: seccomp.ActionAllow,
			Syscalls: []seccomp.SyscallGroup{
				{
					Action: seccomp.ActionErrno,
					Names:  deniedNetworkSyscalls,
				},
			},
		},
	}
}

// buildSocketDomainFilter assembles the program that lets socket(2) and
// socketpair(2) through only for AF_UNIX:
//
//	[0] load arch
//	[1] arch mismatch      -> [9] KILL_PROCESS
//	[2] load syscall nr
//	[3] nr == socket       -> [5]
//	[4] nr != socketpair   -> [7] ALLOW
//	[5] load args[0] (domain, low 32 bits)
//	[6] domain == AF_UNIX  -> [7] ALLOW, else [8] EPERM
//	[7] ALLOW
//	[8] ERRNO(EPERM)
//	[9] KILL_PROCESS
func buildSocketDomainFilter(info *arch.Info) ([]bpf.Instruction, error) {
	socketNr, ok := info.SyscallNames["socket"]
	if !ok {
		return nil, fmt.Errorf("no socket syscall on %s", info.Name)
	}
	socketpairNr, ok := info.SyscallNames["socketpair"]
	if !ok {
		return nil, fmt.Errorf("no socketpair syscall on %s", info.Name)
	}

	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: seccompDataArchOffset, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(info.ID), SkipFalse: 7},
		bpf.LoadAbsolute{Off: seccompDataNrOffset, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(socketNr), SkipTrue: 1}, //nolint:gosec // syscall numbers are small
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(socketpairNr), SkipFalse: 2}, //nolint:gosec // syscall numbers are small
		bpf.LoadAbsolute{Off: seccompDataArg0Offset, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: unix.AF_UNIX, SkipFalse: 1},
		bpf.RetConstant{Val: seccompRetAllow},
		bpf.RetConstant{Val: seccompRetErrno | uint32(unix.EPERM)},
		bpf.RetConstant{Val: seccompRetKillProcess},
	}, nil
}

// loadBPFFilter installs prog with seccomp(SECCOMP_SET_MODE_FILTER, TSYNC).
func loadBPFFilter(prog []bpf.Instruction) error {
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(filter)), //nolint:gosec // filter length is bounded by seccomp BPF limits
		Filter: &filter[0],
	}

	r1, _, errno := seccompSyscallFn(
		unix.SYS_SECCOMP,
		seccompSetModeFilter,
		seccompFilterFlagTSync,
		uintptr(unsafe.Pointer(&fprog)),
	)
	runtime.KeepAlive(filter)
	if errno != 0 {
		return errno
	}
	// With TSYNC a positive return names the thread that could not be
	// synchronised.
	if r1 != 0 {
		return fmt.Errorf("thread %d could not be synchronised", r1)
	}
	return nil
}

// installNetworkSeccomp blocks network access for every thread of the
// process: the named socket syscalls fail with EPERM and sockets can only be
// created in the AF_UNIX domain. The no_new_privs bit must already be set on
// the calling thread.
func installNetworkSeccomp() error {
	info, err := archInfo()
	if err != nil {
		return err
	}

	if err := loadNamedFilterFn(networkNameFilter()); err != nil {
		return fmt.Errorf("load syscall name filter: %w", err)
	}

	prog, err := buildSocketDomainFilter(info)
	if err != nil {
		return err
	}
	if err := loadBPFFilter(prog); err != nil {
		return fmt.Errorf("load socket domain filter: %w", err)
	}
	return nil
}
