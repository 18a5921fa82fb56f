package launcher

import (
	"time"

	"glaunch/pkg/common"
)

// History is the content of $XDG_STATE_HOME/glaunch/history.json, keyed by
// game directory.
type History struct {
	Games map[string]*Entry `json:"games"`
}

// Entry records the last launch of one game directory.
type Entry struct {
	Name     string            `json:"name"`
	Engine   common.EngineKind `json:"engine"`
	Mode     string            `json:"mode"`
	Last     time.Time         `json:"last"`
	Launches int               `json:"launches"`
}

// record stores a launch. It runs before confinement, the state directory
// is not part of the policy. Failures are logged, a launch never fails
// because its history could not be written.
func (m *manager) record(p *Plan, modeName string) {
	err := m.history.Update(func(h *History) error {
		if h.Games == nil {
			h.Games = map[string]*Entry{}
		}
		e, ok := h.Games[p.Root]
		if !ok {
			e = &Entry{}
			h.Games[p.Root] = e
		}
		e.Name = p.Game.Name
		e.Engine = p.Kind
		e.Mode = modeName
		e.Last = time.Now().UTC()
		e.Launches++
		return nil
	})
	if err != nil {
		m.log.Warn("failed to record launch history", "err", err)
	}
}

// lastLaunch returns the history entry for root, if any.
func (m *manager) lastLaunch(root string) (*Entry, bool) {
	h, err := m.history.Get()
	if err != nil || h == nil {
		return nil, false
	}
	e, ok := h.Games[root]
	return e, ok
}
