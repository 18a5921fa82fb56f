// Package manifest reads values out of the JSON files games ship with
// (packr config.json, goggame-*.info, package.json) using jq expressions.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/tidwall/jsonc"
)

// Document is a parsed JSON file.
// Immutable
type Document struct {
	Path string
	data any
}

// Load parses path. Comments and trailing commas are tolerated since some
// bundles ship hand-edited files.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(jsonc.ToJSON(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &Document{Path: path, data: data}, nil
}

// Query runs a jq expression and returns every non-null result.
func (d *Document) Query(expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	var out []any
	iter := q.Run(d.data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if err, ok := err.(*gojq.HaltError); ok && err.Value() == nil {
				break
			}
			return nil, fmt.Errorf("query %q on %s: %w", expr, d.Path, err)
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// String returns the first string result of expr.
func (d *Document) String(expr string) (string, bool) {
	vals, err := d.Query(expr)
	if err != nil {
		return "", false
	}
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Strings returns every string result of expr, in order.
func (d *Document) Strings(expr string) []string {
	vals, err := d.Query(expr)
	if err != nil {
		return nil
	}
	var out []string
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
