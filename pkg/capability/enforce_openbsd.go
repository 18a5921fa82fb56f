//go:build openbsd

package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"golang.org/x/sys/unix"
)

// applyPolicy unveils every granted path, locks unveil and pledges the
// allowed promises. Unveil restrictions survive exec; promises are dropped
// for the child, which is confined by the inherited unveil view.
func applyPolicy(log *slog.Logger, s *Sealed) error {
	for _, g := range s.Grants() {
		if err := unix.Unveil(g.Path, g.Access.String()); err != nil {
			if errors.Is(err, unix.ENOENT) {
				log.Debug("Skipping missing path", "path", g.Path)
				continue
			}
			return fmt.Errorf("unveil %s %s: %w", g.Path, g.Access, err)
		}
	}
	if err := unix.UnveilBlock(); err != nil {
		return fmt.Errorf("unveil lock: %w", err)
	}
	if err := unix.PledgePromises(s.PromiseString()); err != nil {
		return fmt.Errorf("pledge %q: %w", s.PromiseString(), err)
	}
	return nil
}

// PrepareChild has nothing to add on OpenBSD.
func PrepareChild(*exec.Cmd) {}

// NetworkIsolated is always false here.
func NetworkIsolated() bool { return false }
