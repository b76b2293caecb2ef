//go:build linux

package linux

import (
	"fmt"

	"github.com/landlock-lsm/go-landlock/landlock"
	"golang.org/x/sys/unix"

	"github.com/zhangyunhao116/sandboxexec/policy"
)

// landlockCreateRulesetFn is a function variable for landlock_create_ruleset,
// overridden in tests.
var landlockCreateRulesetFn = func(attr, size, flags uintptr) (uintptr, uintptr, unix.Errno) {
	return unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET, attr, size, flags)
}

// landlockRestrictFn enforces the given rules on every thread of the
// process. ABI V5 is requested in best-effort mode so access rights newer
// than the running kernel are dropped instead of failing; DetectLandlock
// rules out the case where no ABI at all is available.
var landlockRestrictFn = func(rules ...landlock.Rule) error {
	return landlock.V5.BestEffort().RestrictPaths(rules...)
}

// LandlockInfo describes Landlock support on the current kernel.
type LandlockInfo struct {
	// Supported indicates whether Landlock is available.
	Supported bool

	// ABIVersion is the Landlock ABI version supported by the kernel.
	ABIVersion int

	// Features is a human-readable description of supported features.
	Features string
}

// DetectLandlock checks Landlock support on the running kernel.
func DetectLandlock() LandlockInfo {
	// LANDLOCK_CREATE_RULESET_VERSION queries the ABI version without
	// creating a ruleset.
	version, _, errno := landlockCreateRulesetFn(0, 0, unix.LANDLOCK_CREATE_RULESET_VERSION)
	if errno != 0 {
		return LandlockInfo{
			Supported: false,
			Features:  "landlock not available: " + errno.Error(),
		}
	}

	abi := int(version) //nolint:gosec // ABI versions are small
	features := fmt.Sprintf("ABI v%d", abi)
	switch {
	case abi >= 5:
		features += " (fs access, refer, truncate, net, ioctl)"
	case abi >= 4:
		features += " (fs access, refer, truncate, net)"
	case abi >= 3:
		features += " (fs access, refer, truncate)"
	case abi >= 2:
		features += " (fs access, refer)"
	case abi >= 1:
		features += " (fs access)"
	}

	return LandlockInfo{
		Supported:  true,
		ABIVersion: abi,
		Features:   features,
	}
}

// landlockRules returns the ruleset for the given writable roots: read and
// execute everywhere, read/write on /dev/null, and full access beneath each
// writable root. Roots that do not exist are skipped.
func landlockRules(roots []policy.WritableRoot) []landlock.Rule {
	rules := []landlock.Rule{
		landlock.RODirs("/"),
		landlock.RWFiles("/dev/null"),
	}
	if len(roots) == 0 {
		return rules
	}
	dirs := make([]string, 0, len(roots))
	for _, r := range roots {
		dirs = append(dirs, r.Root)
	}
	return append(rules, landlock.RWDirs(dirs...).IgnoreIfMissing())
}

// applyLandlock restricts filesystem writes of every thread to the given
// writable roots. info is the Landlock support detected when the platform
// was created; kv only explains why Landlock is missing.
func applyLandlock(roots []policy.WritableRoot, kv KernelVersion, info LandlockInfo) error {
	if !info.Supported {
		hint := "requires kernel >= 5.13"
		if kv.AtLeast(5, 13) {
			hint = "enable it with the lsm= boot parameter"
		}
		return fmt.Errorf("%s on kernel %s: filesystem restrictions cannot be enforced (%s)", info.Features, kv, hint)
	}

	if err := landlockRestrictFn(landlockRules(roots)...); err != nil {
		return fmt.Errorf("landlock restrict (ABI v%d): %w", info.ABIVersion, err)
	}
	return nil
}
