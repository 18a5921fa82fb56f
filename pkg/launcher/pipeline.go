package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"glaunch/pkg/common"
	"glaunch/pkg/mode"
)

// ModeKind selects how decisions are enacted.
type ModeKind string

const (
	ModeImmediate ModeKind = "immediate"
	ModePreview   ModeKind = "preview"
	ModeScript    ModeKind = "script"
)

// Request describes one launch.
type Request struct {
	Root string
	Mode ModeKind
	// ScriptPath is where ModeScript writes. Empty means the script
	// directory of the state dir.
	ScriptPath string
}

// Launch runs the whole pipeline for req.
func (m *manager) Launch(ctx context.Context, req Request) (*mode.Result, error) {
	p, err := m.Inspect(req.Root)
	if err != nil {
		return nil, err
	}
	md, err := m.newMode(req, p)
	if err != nil {
		return nil, err
	}
	return m.Enact(ctx, p, md)
}

// Enact sets up and launches an inspected game through md.
func (m *manager) Enact(ctx context.Context, p *Plan, md mode.Mode) (*mode.Result, error) {
	reqs, err := p.Adapter.Setup(p.Env)
	if err != nil {
		return nil, asStage(common.StageSetup, p.Root, err)
	}
	if err := mode.Dispatch(ctx, md, reqs); err != nil {
		return nil, err
	}

	spec, err := p.Adapter.BuildLaunch(p.Env, p.Game)
	if err != nil {
		return nil, asStage(common.StageLaunch, p.Root, err)
	}
	m.applySettingsEnv(spec)
	spec, err = m.hook.Apply(p.Game, p.Kind, spec)
	if err != nil {
		return nil, err
	}

	b, err := m.buildPolicy(p, spec)
	if err != nil {
		return nil, err
	}
	policy := b.Seal()

	if md.Name() == string(ModeImmediate) {
		m.record(p, md.Name())
	}
	if err := md.Confine(ctx, policy); err != nil {
		return nil, asStage(common.StageConfine, p.Root, err)
	}
	return md.Run(ctx, p.Game.Name, spec)
}

func (m *manager) newMode(req Request, p *Plan) (mode.Mode, error) {
	switch req.Mode {
	case ModePreview:
		return mode.NewPreview(m.disp), nil
	case ModeScript:
		path := req.ScriptPath
		if path == "" {
			path = filepath.Join(m.cfg.GetScriptDir(), scriptName(p)+".sh")
		}
		return mode.NewScript(path, m.cfg.GetOS(), m.settings), nil
	case ModeImmediate, "":
		if err := os.MkdirAll(m.cfg.GetLogDir(), 0o755); err != nil {
			return nil, common.Fail(common.StageSetup, m.cfg.GetLogDir(), err)
		}
		return mode.NewImmediate(mode.Options{
			Root:     p.Root,
			Display:  m.disp,
			Enforcer: m.enforcer,
			Settings: m.settings,
			LogDir:   m.cfg.GetLogDir(),
			Log:      m.log,
		}), nil
	}
	return nil, errors.New("unknown mode " + string(req.Mode))
}

// applySettingsEnv overlays the user's env on the adapter's, in key order.
func (m *manager) applySettingsEnv(spec *common.LaunchSpec) {
	keys := make([]string, 0, len(m.settings.Env))
	for k := range m.settings.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		spec.SetEnv(k, m.settings.Env[k])
	}
}

// scriptName is a file name for the game's script.
func scriptName(p *Plan) string {
	name := p.Game.Name
	if p.Game.Source == common.GameSourceUnknown {
		name = filepath.Base(p.Root)
	}
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
		} else if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(sb.String(), "-")
	if s == "" {
		return "game"
	}
	return s
}

// asStage keeps an existing StageError and wraps anything else.
func asStage(stage common.Stage, path string, err error) error {
	var se *common.StageError
	if errors.As(err, &se) {
		return err
	}
	return common.Fail(stage, path, err)
}
