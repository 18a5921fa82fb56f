package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	ansiUp    = "\x1b[1A"
	ansiClear = "\x1b[2K"
)

// consoleDisplay handles terminal output. Active tasks occupy the last
// lines and are redrawn below every new message.
type consoleDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	theme   *Theme
	verbose bool
	tasks   []*consoleTask
}

// NewConsole creates a Display that writes to standard error.
func NewConsole() Display {
	return &consoleDisplay{out: os.Stderr, theme: DefaultTheme()}
}

// NewWriterDisplay creates a Display that writes to the provided io.Writer
// without colors.
func NewWriterDisplay(w io.Writer) Display {
	return &consoleDisplay{out: w, theme: PlainTheme()}
}

func (d *consoleDisplay) Theme() *Theme { return d.theme }

func (d *consoleDisplay) SetVerbose(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verbose = v
}

// Print writes a message directly to the output writer.
func (d *consoleDisplay) Print(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.above(msg)
}

func (d *consoleDisplay) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.verbose {
		d.above(d.theme.Note(msg) + "\n")
	}
}

func (d *consoleDisplay) StartTask(name string) Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &consoleTask{d: d, name: name}
	d.tasks = append(d.tasks, t)
	fmt.Fprintln(d.out, t.line())
	return t
}

func (d *consoleDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearTasks()
	d.tasks = nil
}

// above prints msg above the task lines. Callers hold mu.
func (d *consoleDisplay) above(msg string) {
	d.clearTasks()
	fmt.Fprint(d.out, msg)
	d.drawTasks()
}

func (d *consoleDisplay) clearTasks() {
	fmt.Fprint(d.out, strings.Repeat(ansiUp+ansiClear, len(d.tasks)))
}

func (d *consoleDisplay) drawTasks() {
	for _, t := range d.tasks {
		fmt.Fprintln(d.out, t.line())
	}
}

// RenderOutput displays structured data to the console.
func (d *consoleDisplay) RenderOutput(out *Output) {
	if out == nil {
		return
	}
	var sb strings.Builder
	if out.Message != "" {
		sb.WriteString(out.Message + "\n")
	}
	width := 0
	for _, kv := range out.KV {
		width = max(width, len(kv.Key)+1)
	}
	for _, kv := range out.KV {
		key := fmt.Sprintf("%-*s", width, kv.Key+":")
		fmt.Fprintf(&sb, "%s %s\n", d.theme.Emph(key), kv.Value)
	}
	if out.Table != nil {
		d.renderTable(&sb, out.Table)
	}
	d.Print(sb.String())
}

func (d *consoleDisplay) renderTable(sb *strings.Builder, t *Table) {
	if len(t.Header) == 0 {
		return
	}

	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var line strings.Builder
	for i, h := range t.Header {
		fmt.Fprintf(&line, "%-*s  ", widths[i], h)
	}
	sb.WriteString(d.theme.Emph(strings.TrimRight(line.String(), " ")) + "\n")

	totalWidth := 0
	for _, w := range widths {
		totalWidth += w + 2
	}
	sb.WriteString(strings.Repeat("-", totalWidth-2) + "\n")

	for _, row := range t.Rows {
		line.Reset()
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&line, "%-*s  ", widths[i], cell)
			}
		}
		sb.WriteString(strings.TrimRight(line.String(), " ") + "\n")
	}
}

type consoleTask struct {
	d       *consoleDisplay
	name    string
	stage   string
	target  string
	percent int
	message string
}

func (t *consoleTask) line() string {
	th := t.d.theme
	s := "[" + t.name + "]"
	if t.stage != "" {
		s += " " + th.Name(t.stage)
	}
	if t.target != "" {
		s += " " + t.target
	}
	if t.percent > 0 {
		s += fmt.Sprintf(" %d%%", t.percent)
	}
	if t.message != "" {
		s += " " + th.Note(t.message)
	}
	return s
}

func (t *consoleTask) redraw() {
	t.d.clearTasks()
	t.d.drawTasks()
}

func (t *consoleTask) Log(msg string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.above(fmt.Sprintf("[%s] %s\n", t.name, msg))
}

func (t *consoleTask) SetStage(name, target string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.stage, t.target, t.percent, t.message = name, target, 0, ""
	t.redraw()
}

func (t *consoleTask) Progress(percent int, message string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.percent, t.message = percent, message
	t.redraw()
}

func (t *consoleTask) Done() {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.clearTasks()
	for i, other := range t.d.tasks {
		if other == t {
			t.d.tasks = append(t.d.tasks[:i], t.d.tasks[i+1:]...)
			break
		}
	}
	fmt.Fprintf(t.d.out, "[%s] %s\n", t.name, t.d.theme.OK("Done"))
	t.d.drawTasks()
}
