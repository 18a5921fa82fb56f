package override

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"glaunch/pkg/common"
)

// The launch dict seen by the hook:
//
//	{"game": str, "engine": str, "dir": str, "exe": str,
//	 "args": [str], "env": {str: str}}
//
// game and engine are informational. Keys the hook deletes keep their
// original values.
func toLaunchDict(game common.GameIdentity, kind common.EngineKind, spec *common.LaunchSpec) *starlark.Dict {
	args := make([]starlark.Value, len(spec.Args))
	for i, a := range spec.Args {
		args[i] = starlark.String(a)
	}
	env := starlark.NewDict(len(spec.Env))
	for _, kv := range spec.Env {
		k, v, _ := strings.Cut(kv, "=")
		env.SetKey(starlark.String(k), starlark.String(v))
	}

	d := starlark.NewDict(6)
	for _, kv := range []struct {
		k string
		v starlark.Value
	}{
		{"game", starlark.String(game.Name)},
		{"engine", starlark.String(kind)},
		{"dir", starlark.String(spec.Dir)},
		{"exe", starlark.String(spec.Exe)},
		{"args", starlark.NewList(args)},
		{"env", env},
	} {
		d.SetKey(starlark.String(kv.k), kv.v)
	}
	return d
}

func fromLaunchDict(d *starlark.Dict, orig *common.LaunchSpec) (*common.LaunchSpec, error) {
	out := &common.LaunchSpec{
		Exe:  orig.Exe,
		Args: append([]string(nil), orig.Args...),
		Env:  append([]string(nil), orig.Env...),
		Dir:  orig.Dir,
	}
	var err error
	if v, ok, _ := d.Get(starlark.String("exe")); ok {
		if out.Exe, ok = starlark.AsString(v); !ok || out.Exe == "" {
			return nil, fmt.Errorf("exe must be a non-empty string")
		}
	}
	if v, ok, _ := d.Get(starlark.String("dir")); ok {
		if out.Dir, ok = starlark.AsString(v); !ok {
			return nil, fmt.Errorf("dir must be a string")
		}
	}
	if v, ok, _ := d.Get(starlark.String("args")); ok {
		if out.Args, err = readArgs(v); err != nil {
			return nil, fmt.Errorf("args: %w", err)
		}
	}
	if v, ok, _ := d.Get(starlark.String("env")); ok {
		if out.Env, err = readEnv(v); err != nil {
			return nil, fmt.Errorf("env: %w", err)
		}
	}
	return out, nil
}

func readArgs(v starlark.Value) ([]string, error) {
	seq, ok := v.(starlark.Indexable)
	if !ok || v.Type() == "string" {
		return nil, fmt.Errorf("expected a list of strings, got %s", v.Type())
	}
	args := make([]string, seq.Len())
	for i := range args {
		s, ok := starlark.AsString(seq.Index(i))
		if !ok {
			return nil, fmt.Errorf("item %d is a %s", i, seq.Index(i).Type())
		}
		args[i] = s
	}
	return args, nil
}

// readEnv keeps the dict's insertion order.
func readEnv(v starlark.Value) ([]string, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("expected a dict, got %s", v.Type())
	}
	env := make([]string, 0, d.Len())
	for _, item := range d.Items() {
		k, ok := starlark.AsString(item[0])
		if !ok || k == "" || strings.Contains(k, "=") {
			return nil, fmt.Errorf("bad variable name %s", item[0])
		}
		val, ok := starlark.AsString(item[1])
		if !ok {
			return nil, fmt.Errorf("%s is a %s, want string", k, item[1].Type())
		}
		env = append(env, k+"="+val)
	}
	return env, nil
}
