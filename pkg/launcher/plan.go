package launcher

import (
	"fmt"
	"os"
	"path/filepath"

	"glaunch/pkg/common"
	"glaunch/pkg/detect"
	"glaunch/pkg/engine"
)

// Plan is what classification and identification decided about a game
// directory.
// Immutable
type Plan struct {
	Root     string
	Kind     common.EngineKind
	Evidence common.EvidenceFile
	Game     common.GameIdentity
	Adapter  engine.Adapter
	Env      *engine.Env
}

// Inspect classifies root and identifies the game in it. Nothing is
// modified.
func (m *manager) Inspect(root string) (*Plan, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, common.Fail(common.StageClassify, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, common.Fail(common.StageClassify, abs, err)
	}
	if !info.IsDir() {
		return nil, common.Fail(common.StageClassify, abs, fmt.Errorf("not a directory"))
	}

	res, err := detect.NewClassifier(m.registry, m.log).Classify(abs)
	if err != nil {
		return nil, err
	}
	m.log.Debug("classified", "root", abs, "engine", res.Kind, "evidence", res.Evidence)

	adapter, err := engine.For(res.Kind)
	if err != nil {
		return nil, common.Fail(common.StageSetup, abs, err)
	}
	env := engine.NewEnv(m.cfg, m.settings, abs, res.Evidence)
	env.Log = m.log
	env.LookPath = m.lookPath

	game := detect.NewIdentifier(m.registry, m.log).Identify(abs, res.Kind, engine.Detector(adapter, env))
	m.log.Debug("identified", "game", game.Name, "source", game.Source)

	return &Plan{
		Root:     abs,
		Kind:     res.Kind,
		Evidence: res.Evidence,
		Game:     game,
		Adapter:  adapter,
		Env:      env,
	}, nil
}
