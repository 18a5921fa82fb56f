package override

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/itchyny/gojq"
	starjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// kwFunc is a builtin called with keyword arguments only. Every parameter
// is mandatory.
type kwFunc struct {
	name   string
	doc    string
	params []string
	run    func(t *starlark.Thread, kw map[string]starlark.Value) (starlark.Value, error)
}

func (f kwFunc) builtin() *starlark.Builtin {
	return starlark.NewBuiltin(f.name, func(t *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s takes keyword-only arguments, %s", f.name, f.signature())
		}
		kw := make(map[string]starlark.Value, len(kwargs))
		for _, pair := range kwargs {
			name := string(pair[0].(starlark.String))
			if !slices.Contains(f.params, name) {
				return nil, fmt.Errorf("%s: unexpected argument %q, %s", f.name, name, f.signature())
			}
			kw[name] = pair[1]
		}
		for _, p := range f.params {
			if _, ok := kw[p]; !ok {
				return nil, fmt.Errorf("%s: missing argument %q, %s", f.name, p, f.signature())
			}
		}
		return f.run(t, kw)
	})
}

// signature renders e.g. "usage: jq.query(query=, value=): runs a jq filter".
func (f kwFunc) signature() string {
	return fmt.Sprintf("usage: %s(%s=): %s", f.name, strings.Join(f.params, "=, "), f.doc)
}

func module(name string, funcs ...kwFunc) *starlarkstruct.Struct {
	members := make(starlark.StringDict, len(funcs))
	for _, f := range funcs {
		members[strings.TrimPrefix(f.name, name+".")] = f.builtin()
	}
	return starlarkstruct.FromStringDict(starlark.String(name), members)
}

func builtins() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json": module("json",
			kwFunc{
				name: "json.decode", doc: "parses a JSON string",
				params: []string{"data"},
				run: func(t *starlark.Thread, kw map[string]starlark.Value) (starlark.Value, error) {
					return callJSON(t, "decode", kw["data"])
				},
			},
			kwFunc{
				name: "json.encode", doc: "renders a value as JSON",
				params: []string{"value"},
				run: func(t *starlark.Thread, kw map[string]starlark.Value) (starlark.Value, error) {
					return callJSON(t, "encode", kw["value"])
				},
			},
		),
		"jq": module("jq",
			kwFunc{
				name: "jq.query", doc: "runs a jq filter, one result as is, several as a list",
				params: []string{"query", "value"},
				run:    jqQuery,
			},
		),
	}
}

func callJSON(t *starlark.Thread, fn string, v starlark.Value) (starlark.Value, error) {
	return starlark.Call(t, starjson.Module.Members[fn], starlark.Tuple{v}, nil)
}

func jqQuery(t *starlark.Thread, kw map[string]starlark.Value) (starlark.Value, error) {
	src, ok := starlark.AsString(kw["query"])
	if !ok {
		return nil, fmt.Errorf("jq.query: query must be a string, got %s", kw["query"].Type())
	}
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("jq.query: %w", err)
	}
	input, err := toGo(t, kw["value"])
	if err != nil {
		return nil, err
	}

	var results []starlark.Value
	iter := q.Run(input)
	for {
		res, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := res.(error); ok {
			return nil, fmt.Errorf("jq.query: %w", err)
		}
		v, err := fromGo(t, res)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return starlark.NewList(results), nil
}

// toGo and fromGo cross the Starlark boundary through JSON text, so values
// have exactly the shapes json.encode and json.decode give them.
func toGo(t *starlark.Thread, v starlark.Value) (any, error) {
	text, err := callJSON(t, "encode", v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(string(text.(starlark.String))), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromGo(t *starlark.Thread, v any) (starlark.Value, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return callJSON(t, "decode", starlark.String(text))
}
