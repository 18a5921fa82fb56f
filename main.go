package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"glaunch/pkg/capability"
	"glaunch/pkg/config"
	"glaunch/pkg/display"
	"glaunch/pkg/launcher"
)

func init() {
	// Landlock and pledge restrict the calling thread; the game must be
	// spawned from the same one.
	runtime.LockOSThread()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", display.DefaultTheme().Bad("glaunch:"), err)
		os.Exit(1)
	}
}

type options struct {
	preview bool
	script  string
	info    bool
	verbose bool
	version bool
	dir     string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("glaunch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: glaunch [flags] [game-dir]\n\nLaunches the game in game-dir (default: current directory) confined to what it needs.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.BoolVarP(&opts.preview, "preview", "n", false, "show what would be done without doing it")
	fs.StringVarP(&opts.script, "script", "s", "", "write a shell script replaying the launch to `path`")
	fs.BoolVarP(&opts.info, "info", "i", false, "print the detected engine and game and exit")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log every decision")
	fs.BoolVar(&opts.version, "version", false, "print version information")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
		opts.dir = "."
	case 1:
		opts.dir = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected at most one game directory, got %d", fs.NArg())
	}
	if opts.preview && opts.script != "" {
		return nil, fmt.Errorf("--preview and --script are exclusive")
	}
	return opts, nil
}

func (o *options) request() launcher.Request {
	req := launcher.Request{Root: o.dir, Mode: launcher.ModeImmediate}
	switch {
	case o.preview:
		req.Mode = launcher.ModePreview
	case o.script != "":
		req.Mode = launcher.ModeScript
		req.ScriptPath = o.script
	}
	return req
}

func run(args []string) error {
	opts, err := parseArgs(args, os.Stderr)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Println(config.BuildInfo())
		return nil
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	disp := display.NewConsole()
	defer disp.Close()
	disp.SetVerbose(opts.verbose)

	cfg, err := config.Init()
	if err != nil {
		return fmt.Errorf("error initializing config: %w", err)
	}
	cfg.Freeze()

	mgr, err := launcher.NewManager(cfg, disp, capability.NewEnforcer(log), log)
	if err != nil {
		return err
	}

	if opts.info {
		out, err := mgr.Info(opts.dir)
		if err != nil {
			return err
		}
		disp.RenderOutput(out)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := mgr.Launch(ctx, opts.request())
	if err != nil {
		return err
	}
	if res.Artifact != "" {
		th := disp.Theme()
		disp.Print(fmt.Sprintf("%s wrote %s", th.Sym.Script, res.Artifact))
	}
	if res.ExitCode != 0 {
		disp.Close()
		os.Exit(res.ExitCode)
	}
	return nil
}
