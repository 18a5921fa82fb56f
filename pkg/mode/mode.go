// Package mode enacts launch decisions. Every mode receives the same
// sequence of requests and records the same journal; they differ only in
// whether the requests are performed, described or written to a script.
package mode

import (
	"context"
	"fmt"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// Mode is selected once per run.
type Mode interface {
	Name() string
	Extract(ctx context.Context, reqs []common.Extract) error
	Remove(ctx context.Context, reqs []common.Remove) error
	Replace(ctx context.Context, reqs []common.Replace) error
	Convert(ctx context.Context, reqs []common.Convert) error
	// Confine receives the sealed policy. It is called exactly once, after
	// every transformation and before Run.
	Confine(ctx context.Context, policy *capability.Sealed) error
	Run(ctx context.Context, name string, spec *common.LaunchSpec) (*Result, error)
	// Journal returns the decisions received so far, in order.
	Journal() []string
}

// Result is the outcome of Run.
type Result struct {
	// ExitCode of the game, Immediate only.
	ExitCode int
	// Artifact is the written script, ScriptEmit only.
	Artifact string
	// Log is the captured output of the game, Immediate only.
	Log     string
	Journal []string
}

// Dispatch hands reqs to m in order, batching runs of the same kind. The
// first failure stops the dispatch.
func Dispatch(ctx context.Context, m Mode, reqs []common.TransformRequest) error {
	for i := 0; i < len(reqs); {
		j := i + 1
		for j < len(reqs) && sameKind(reqs[i], reqs[j]) {
			j++
		}
		if err := dispatchBatch(ctx, m, reqs[i:j]); err != nil {
			return err
		}
		i = j
	}
	return nil
}

func sameKind(a, b common.TransformRequest) bool {
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

func dispatchBatch(ctx context.Context, m Mode, batch []common.TransformRequest) error {
	switch batch[0].(type) {
	case common.Extract:
		return m.Extract(ctx, collect[common.Extract](batch))
	case common.Remove:
		return m.Remove(ctx, collect[common.Remove](batch))
	case common.Replace:
		return m.Replace(ctx, collect[common.Replace](batch))
	case common.Convert:
		return m.Convert(ctx, collect[common.Convert](batch))
	}
	return fmt.Errorf("unknown transform %T", batch[0])
}

func collect[T common.TransformRequest](batch []common.TransformRequest) []T {
	out := make([]T, 0, len(batch))
	for _, r := range batch {
		out = append(out, r.(T))
	}
	return out
}

// failed reports a transformation that could not be performed.
func failed(path string, err error) error {
	return common.Fail(common.StageTransform, path, fmt.Errorf("%w: %w", common.ErrTransform, err))
}

// journal records decisions. Modes embed it so the record is identical
// whatever the enactment.
type journal struct {
	entries []string
}

func (j *journal) Journal() []string {
	return append([]string(nil), j.entries...)
}

func (j *journal) record(entry string) {
	j.entries = append(j.entries, entry)
}

func (j *journal) recordPolicy(p *capability.Sealed) {
	j.record(policyDecision(p))
}

func (j *journal) recordRun(name string, spec *common.LaunchSpec) {
	j.record(runDecision(name, spec))
}

func policyDecision(p *capability.Sealed) string {
	grants := make([]string, 0, len(p.Grants()))
	for _, g := range p.Grants() {
		grants = append(grants, g.String())
	}
	return fmt.Sprintf("confine [%s] promises %q", strings.Join(grants, ", "), p.PromiseString())
}

func runDecision(name string, spec *common.LaunchSpec) string {
	return fmt.Sprintf("run %s: cd %s; env %s; %s",
		name, spec.Dir, strings.Join(spec.Env, " "), shellJoin(spec.Argv()))
}
