// Package override runs the user's overrides.star hook, which may adjust
// the launch of a game before it is sealed.
//
// The file defines a function override(launch). launch is a dict with the
// keys game, engine, dir, exe, args and env. The function either mutates
// it in place and returns None, or returns a replacement dict:
//
//	def override(launch):
//	    if launch["game"] == "Celeste":
//	        launch["env"]["FNA_OPENGL_FORCE_ES3"] = "1"
//	        launch["args"].append("--windowed")
package override

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"

	"glaunch/pkg/common"
)

// hookName is the function looked up in the overrides file.
const hookName = "override"

// Hook is a loaded overrides file.
type Hook struct {
	path   string
	thread *starlark.Thread
	fn     starlark.Callable
}

// Load executes the overrides file at path. A missing file, or one that
// does not define override, yields a nil Hook.
func Load(path string, log *slog.Logger) (*Hook, error) {
	source, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}
	return Compile(path, source, log)
}

// Compile executes source as an overrides file named path.
func Compile(path string, source []byte, log *slog.Logger) (*Hook, error) {
	if log == nil {
		log = slog.Default()
	}
	thread := &starlark.Thread{
		Name: filepath.Base(path),
		Print: func(thread *starlark.Thread, msg string) {
			log.Info(msg, "source", thread.Name)
		},
	}
	globals, err := starlark.ExecFile(thread, path, source, builtins())
	if err != nil {
		return nil, mungeEvalError(path, err)
	}
	v, ok := globals[hookName]
	if !ok {
		log.Debug("overrides file defines no hook", "path", path)
		return nil, nil
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: %s is a %s, not a function", path, hookName, v.Type())
	}
	return &Hook{path: path, thread: thread, fn: fn}, nil
}

// Apply calls the hook for a game and returns the adjusted spec. spec is
// not modified. A nil Hook returns spec unchanged.
func (h *Hook) Apply(game common.GameIdentity, kind common.EngineKind, spec *common.LaunchSpec) (*common.LaunchSpec, error) {
	if h == nil {
		return spec, nil
	}
	launch := toLaunchDict(game, kind, spec)
	ret, err := starlark.Call(h.thread, h.fn, starlark.Tuple{launch}, nil)
	if err != nil {
		return nil, common.Fail(common.StageLaunch, h.path, mungeEvalError(h.path, err))
	}
	if ret != starlark.None {
		d, ok := ret.(*starlark.Dict)
		if !ok {
			return nil, common.Fail(common.StageLaunch, h.path,
				fmt.Errorf("%s must return a dict or None, got %s", hookName, ret.Type()))
		}
		launch = d
	}
	out, err := fromLaunchDict(launch, spec)
	if err != nil {
		return nil, common.Fail(common.StageLaunch, h.path, err)
	}
	return out, nil
}

func mungeEvalError(path string, err error) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return fmt.Errorf("override error in %s:\n%s", path, evalErr.Backtrace())
	}
	return fmt.Errorf("override error in %s: %w", path, err)
}
