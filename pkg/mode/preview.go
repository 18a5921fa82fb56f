package mode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/display"
)

// Preview describes every decision and touches nothing.
type Preview struct {
	journal
	disp display.Display
}

func NewPreview(disp display.Display) *Preview {
	return &Preview{disp: disp}
}

func (m *Preview) Name() string { return "preview" }

func (m *Preview) show(icon, verb, detail string) {
	th := m.disp.Theme()
	m.disp.Print(fmt.Sprintf("%s %s %s", icon, th.Emph(verb), detail))
}

func (m *Preview) Extract(_ context.Context, reqs []common.Extract) error {
	th := m.disp.Theme()
	for _, e := range reqs {
		m.record(e.String())
		size := "missing"
		if info, err := os.Stat(e.Archive); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		m.show(th.Sym.Bullet, "extract", fmt.Sprintf("%s %s %s %s",
			e.Archive, th.Note("("+size+", "+e.Handler+")"), th.Sym.Arrow, e.Dest))
	}
	return nil
}

func (m *Preview) Remove(_ context.Context, reqs []common.Remove) error {
	th := m.disp.Theme()
	for _, r := range reqs {
		m.record(r.String())
		m.show(th.Sym.Bullet, "remove", r.Path)
	}
	return nil
}

func (m *Preview) Replace(_ context.Context, reqs []common.Replace) error {
	th := m.disp.Theme()
	for _, r := range reqs {
		m.record(r.String())
		m.show(th.Sym.Bullet, "link", fmt.Sprintf("%s %s %s", r.Target, th.Sym.Arrow, r.Source))
	}
	return nil
}

func (m *Preview) Convert(_ context.Context, reqs []common.Convert) error {
	th := m.disp.Theme()
	for _, c := range reqs {
		m.record(c.String())
		m.show(th.Sym.Bullet, "convert", fmt.Sprintf("%s %s %s %s",
			c.Source, th.Sym.Arrow, c.Dest, th.Note("("+c.Codec+")")))
	}
	return nil
}

func (m *Preview) Confine(_ context.Context, policy *capability.Sealed) error {
	m.recordPolicy(policy)
	th := m.disp.Theme()
	m.show(th.Sym.Lock, "confine", th.Note("promises: "+policy.PromiseString()))
	grants := policy.Grants()
	for i, g := range grants {
		m.disp.Print(fmt.Sprintf("  %s %-4s %s", th.Branch(i, len(grants)), g.Access, g.Path))
	}
	return nil
}

func (m *Preview) Run(_ context.Context, name string, spec *common.LaunchSpec) (*Result, error) {
	m.recordRun(name, spec)
	th := m.disp.Theme()
	kv := []display.KV{
		{Key: "game", Value: th.Name(name)},
		{Key: "dir", Value: spec.Dir},
		{Key: "exec", Value: shellJoin(spec.Argv())},
	}
	if len(spec.Env) > 0 {
		kv = append(kv, display.KV{Key: "env", Value: strings.Join(spec.Env, " ")})
	}
	m.disp.RenderOutput(&display.Output{
		Message: fmt.Sprintf("%s %s", th.Sym.Game, th.Emph("launch")),
		KV:      kv,
	})
	return &Result{Journal: m.Journal()}, nil
}
