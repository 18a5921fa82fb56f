package capability

import (
	"log/slog"
	"sync/atomic"
)

// Enforcer asks the operating system to enforce a sealed policy on the
// current process and every process it spawns afterwards.
type Enforcer interface {
	Apply(s *Sealed) error
}

var applied atomic.Bool

// hostEnforcer enforces with the host's native primitive.
type hostEnforcer struct {
	log *slog.Logger
}

// NewEnforcer returns the enforcer for the running host.
func NewEnforcer(log *slog.Logger) Enforcer {
	return &hostEnforcer{log: log}
}

// Apply may be called once per process.
func (e *hostEnforcer) Apply(s *Sealed) error {
	if !applied.CompareAndSwap(false, true) {
		panic(&MisuseError{Op: "apply twice"})
	}
	return applyPolicy(e.log, s)
}
