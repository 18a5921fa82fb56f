package bubblewrap

import (
	"slices"
	"strings"
	"testing"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

func TestArgv(t *testing.T) {
	s := New("/usr/bin/bwrap").
		Mount(ReadOnly, "/etc").
		Mount(Tmpfs, "/tmp").
		Mount(Bind, "/tmp/.X11-unix").
		Setenv("LANG", "C").
		Setenv("LANG", "C.UTF-8").
		Exec("/bin/sh", "-c", "echo hello")

	got := strings.Join(s.Argv(), " ")
	want := "/usr/bin/bwrap --ro-bind /etc /etc --tmpfs /tmp --bind /tmp/.X11-unix /tmp/.X11-unix --setenv LANG C.UTF-8 -- /bin/sh -c echo hello"
	if got != want {
		t.Errorf("unexpected argv:\n got  %s\n want %s", got, want)
	}
}

func TestRemountKeepsLastKind(t *testing.T) {
	argv := New("").Mount(ReadOnly, "/data/").Mount(Bind, "/data").Argv()
	want := []string{"bwrap", "--bind", "/data", "/data"}
	if !slices.Equal(argv, want) {
		t.Errorf("got %v, want %v", argv, want)
	}
}

func TestFromPolicy(t *testing.T) {
	pb := capability.NewBuilder()
	pb.Add("/usr", capability.RX)
	pb.Add("/proc", capability.Read)
	pb.Add("/dev", capability.Read|capability.Write)
	pb.Add("/games/celeste", capability.RWC)
	sealed := pb.Seal()

	spec := &common.LaunchSpec{
		Exe:  "mono",
		Args: []string{"Celeste.exe"},
		Env:  []string{"MONO_ENV_OPTIONS=--gc=sgen"},
		Dir:  "/games/celeste",
	}
	args := strings.Join(FromPolicy("bwrap", sealed, spec).Argv(), " ")

	for _, sub := range []string{
		"--unshare-net",
		"--chdir /games/celeste",
		"--dev-bind-try /dev /dev",
		"--bind-try /games/celeste /games/celeste",
		"--proc /proc",
		"--ro-bind-try /usr /usr",
		"--setenv MONO_ENV_OPTIONS --gc=sgen",
		"-- mono Celeste.exe",
	} {
		if !strings.Contains(args, sub) {
			t.Errorf("Expected args to contain %q, got: %s", sub, args)
		}
	}
	if !strings.HasSuffix(args, "-- mono Celeste.exe") {
		t.Errorf("command must come last: %s", args)
	}
}

func TestFromPolicyWithNetwork(t *testing.T) {
	pb := capability.NewBuilder()
	pb.Allow(capability.NetworkPromises...)
	argv := FromPolicy("bwrap", pb.Seal(), &common.LaunchSpec{Exe: "nw"}).Argv()
	if slices.Contains(argv, "--unshare-net") {
		t.Errorf("network must stay shared when allowed: %v", argv)
	}
}
