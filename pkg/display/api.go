// Package display renders human facing output: previews, info summaries
// and progress of long running transformations.
package display

// Task is one long running step shown as a live status line.
type Task interface {
	// Log prints msg above the status line.
	Log(msg string)
	// SetStage updates the current stage of the task (e.g. "extract") and
	// the file or folder being worked on.
	SetStage(name string, target string)
	// Progress sets percent, 0 to 100, and a short status.
	Progress(percent int, message string)
	// Done replaces the status line with a final one.
	Done()
}

// KV is one labelled value of an Output.
type KV struct {
	Key   string
	Value string
}

// Table is a simple column aligned table.
type Table struct {
	Header []string
	Rows   [][]string
}

// Output is structured content rendered in one go.
type Output struct {
	Message string
	KV      []KV
	Table   *Table
}

// Display is where glaunch talks to the user. Logging for diagnostics
// goes through slog instead.
type Display interface {
	// StartTask shows a new status line.
	StartTask(name string) Task
	// Log adds a diagnostic message, shown only when verbose.
	Log(msg string)
	// Print adds a primary output message.
	Print(msg string)
	// RenderOutput prints structured content.
	RenderOutput(out *Output)
	// Theme returns the styles used for output.
	Theme() *Theme
	// SetVerbose controls whether Log output is shown.
	SetVerbose(v bool)
	// Close finishes every open task.
	Close()
}
