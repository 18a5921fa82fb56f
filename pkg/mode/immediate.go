package mode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"glaunch/pkg/archive"
	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/config"
	"glaunch/pkg/display"
	"glaunch/pkg/lockfile"
)

// setupLock is the name, inside the game directory, guarding concurrent
// setups of the same game.
const setupLock = ".glaunch"

// Options configure Immediate.
type Options struct {
	// Root is the game directory.
	Root     string
	Display  display.Display
	Enforcer capability.Enforcer
	Settings *config.Settings
	// LogDir receives one <game>.log per run.
	LogDir string
	Stdin  *os.File
	Stdout io.Writer
	Log    *slog.Logger
}

// Immediate performs every request on the host and runs the game.
// Mutable
type Immediate struct {
	journal
	opts     Options
	confined bool
}

// NewImmediate returns an Immediate mode. Nil streams default to the
// process's own.
func NewImmediate(opts Options) *Immediate {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Display == nil {
		opts.Display = display.NewWriterDisplay(io.Discard)
	}
	return &Immediate{opts: opts}
}

func (m *Immediate) Name() string { return "immediate" }

// batch runs fn for every item under the setup lock, reporting progress.
func batch[T fmt.Stringer](ctx context.Context, m *Immediate, stage string, reqs []T, fn func(T) error) error {
	unlock, err := lockfile.Lock(ctx, filepath.Join(m.opts.Root, setupLock), stage)
	if err != nil {
		return common.Fail(common.StageTransform, m.opts.Root, err)
	}
	defer unlock()

	task := m.opts.Display.StartTask(stage)
	defer task.Done()
	for i, r := range reqs {
		m.record(r.String())
		if err := ctx.Err(); err != nil {
			return err
		}
		task.SetStage(stage, r.String())
		if err := fn(r); err != nil {
			return err
		}
		task.Progress((i+1)*100/len(reqs), "")
	}
	return nil
}

func (m *Immediate) Extract(ctx context.Context, reqs []common.Extract) error {
	return batch(ctx, m, "extract", reqs, func(e common.Extract) error {
		info, err := os.Stat(e.Archive)
		if err != nil {
			return failed(e.Archive, err)
		}
		if err := os.MkdirAll(e.Dest, 0o755); err != nil {
			return failed(e.Dest, err)
		}
		if h := archive.Handler(e.Handler); archive.IsBuiltin(h) {
			stats, err := archive.Extract(e.Archive, e.Dest, h)
			if err != nil {
				return failed(e.Archive, err)
			}
			m.opts.Log.Info("extracted", "archive", e.Archive,
				"size", humanize.Bytes(uint64(info.Size())),
				"files", stats.Files, "unpacked", humanize.Bytes(uint64(stats.Bytes)))
			return nil
		}
		argv, err := externalExtractArgv(m.opts.Settings, e)
		if err != nil {
			return failed(e.Archive, err)
		}
		if err := m.tool(ctx, argv); err != nil {
			return failed(e.Archive, err)
		}
		return nil
	})
}

func (m *Immediate) Remove(ctx context.Context, reqs []common.Remove) error {
	return batch(ctx, m, "remove", reqs, func(r common.Remove) error {
		if err := os.RemoveAll(r.Path); err != nil {
			return failed(r.Path, err)
		}
		m.opts.Log.Debug("removed", "path", r.Path)
		return nil
	})
}

func (m *Immediate) Replace(ctx context.Context, reqs []common.Replace) error {
	return batch(ctx, m, "replace", reqs, func(r common.Replace) error {
		if _, err := os.Stat(r.Source); err != nil {
			return failed(r.Source, err)
		}
		if err := os.RemoveAll(r.Target); err != nil {
			return failed(r.Target, err)
		}
		if err := os.MkdirAll(filepath.Dir(r.Target), 0o755); err != nil {
			return failed(r.Target, err)
		}
		if err := os.Symlink(r.Source, r.Target); err != nil {
			return failed(r.Target, err)
		}
		m.opts.Log.Debug("replaced", "target", r.Target, "source", r.Source)
		return nil
	})
}

func (m *Immediate) Convert(ctx context.Context, reqs []common.Convert) error {
	return batch(ctx, m, "convert", reqs, func(c common.Convert) error {
		if _, err := os.Stat(c.Source); err != nil {
			return failed(c.Source, err)
		}
		argv, err := convertArgv(m.opts.Settings, c)
		if err != nil {
			return failed(c.Source, err)
		}
		err = lockfile.Ensure(ctx, c.Dest, func() error {
			if err := m.tool(ctx, argv); err != nil {
				os.Remove(c.Dest)
				return err
			}
			return nil
		})
		if err != nil {
			return failed(c.Source, err)
		}
		return nil
	})
}

// tool runs a helper program to completion, folding its output into the
// error on failure.
func (m *Immediate) tool(ctx context.Context, argv []string) error {
	m.opts.Log.Debug("running", "argv", argv)
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", filepath.Base(argv[0]), err, lastLine(out))
		}
		return fmt.Errorf("%s: %w", filepath.Base(argv[0]), err)
	}
	return nil
}

// Confine enforces the policy on this process. Everything spawned later
// inherits it.
func (m *Immediate) Confine(_ context.Context, policy *capability.Sealed) error {
	m.recordPolicy(policy)
	if m.opts.Enforcer == nil {
		return common.Fail(common.StageConfine, "", errors.New("no enforcer configured"))
	}
	if err := m.opts.Enforcer.Apply(policy); err != nil {
		return common.Fail(common.StageConfine, "", err)
	}
	m.confined = true
	return nil
}

// Run spawns the game on a pseudo-terminal and waits for it. It refuses
// to run a game that was not confined.
func (m *Immediate) Run(ctx context.Context, name string, spec *common.LaunchSpec) (*Result, error) {
	m.recordRun(name, spec)
	if !m.confined {
		return nil, common.Fail(common.StageRun, spec.Exe, errors.New("policy was not enforced"))
	}
	logPath := ""
	if m.opts.LogDir != "" {
		if err := os.MkdirAll(m.opts.LogDir, 0o755); err != nil {
			return nil, common.Fail(common.StageRun, m.opts.LogDir, err)
		}
		logPath = filepath.Join(m.opts.LogDir, logName(name))
	}

	cmd := exec.CommandContext(ctx, spec.Exe, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.MergeEnv(os.Environ())
	capability.PrepareChild(cmd)

	m.opts.Log.Info("starting", "game", name, "exe", spec.Exe, "log", logPath)
	code, err := runOnPTY(ctx, cmd, m.opts.Stdin, m.opts.Stdout, logPath)
	var notStarted *startError
	if errors.As(err, &notStarted) && capability.NetworkIsolated() {
		// Unprivileged user namespaces are off; the game would not be
		// cut off from the network.
		return nil, common.Fail(common.StageConfine, spec.Exe, err)
	}
	if err != nil {
		return nil, common.Fail(common.StageRun, spec.Exe, err)
	}
	m.opts.Log.Info("exited", "game", name, "code", code)
	return &Result{ExitCode: code, Log: logPath, Journal: m.Journal()}, nil
}

func logName(game string) string {
	safe := []rune(game)
	for i, r := range safe {
		if r == '/' || r == os.PathSeparator || r == 0 {
			safe[i] = '_'
		}
	}
	return string(safe) + ".log"
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}
