package mode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// startError marks a child that never started.
type startError struct{ err error }

func (e *startError) Error() string { return "failed to start on pty: " + e.err.Error() }
func (e *startError) Unwrap() error { return e.err }

// runOnPTY starts cmd on a new pseudo-terminal, copies its output to out
// and, when logPath is set, to that file. Input is forwarded from in, which
// is put in raw mode while the child runs if it is a terminal.
func runOnPTY(ctx context.Context, cmd *exec.Cmd, in *os.File, out io.Writer, logPath string) (int, error) {
	sink := out
	if logPath != "" {
		logFile, err := os.Create(logPath)
		if err != nil {
			return -1, fmt.Errorf("failed to create log: %w", err)
		}
		defer logFile.Close()
		sink = io.MultiWriter(out, logFile)
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, &startError{err}
	}
	defer ptmx.Close()

	if in != nil && term.IsTerminal(int(in.Fd())) {
		if err := pty.InheritSize(in, ptmx); err != nil {
			return -1, fmt.Errorf("failed to size pty: %w", err)
		}
		state, err := term.MakeRaw(int(in.Fd()))
		if err != nil {
			return -1, fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(int(in.Fd()), state)
		// Input copying ends with the process; it is not part of the group.
		go io.Copy(ptmx, in)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(sink, ptmx)
		// Reading a pty whose child exited fails with EIO.
		if errors.Is(err, syscall.EIO) {
			return nil
		}
		return err
	})

	waitErr := cmd.Wait()
	copyErr := g.Wait()

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), copyErr
	}
	if waitErr != nil {
		return -1, waitErr
	}
	return 0, copyErr
}
