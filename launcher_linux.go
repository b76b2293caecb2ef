//go:build linux

package sandboxexec

import (
	"github.com/zhangyunhao116/sandboxexec/platform"
	"github.com/zhangyunhao116/sandboxexec/platform/linux"
)

func init() {
	defaultApplierFn = func() platform.Applier {
		return linux.New()
	}
}
