//go:build !linux && !openbsd

package capability

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

func applyPolicy(_ *slog.Logger, _ *Sealed) error {
	return fmt.Errorf("no privilege reduction primitive on %s", runtime.GOOS)
}

func PrepareChild(*exec.Cmd) {}

func NetworkIsolated() bool { return false }
