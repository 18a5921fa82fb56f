package launcher

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/config"
	"glaunch/pkg/display"
)

type fakeEnforcer struct {
	applied []*capability.Sealed
}

func (f *fakeEnforcer) Apply(s *capability.Sealed) error {
	f.applied = append(f.applied, s)
	return nil
}

type harness struct {
	cfg *config.Config
	out *bytes.Buffer
	enf *fakeEnforcer
	mgr Manager
}

// newHarness builds a manager over a private XDG tree. files are written
// relative to the config dir before the manager loads them.
func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	cfg := config.NewForTest(t.TempDir(), common.OSLinux)
	for name, data := range files {
		p := filepath.Join(cfg.GetConfigDir(), name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	h := &harness{cfg: cfg, out: &bytes.Buffer{}, enf: &fakeEnforcer{}}
	mgr, err := NewManager(cfg, display.NewWriterDisplay(h.out), h.enf, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mgr.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	h.mgr = mgr
	return h
}

func writeFile(t *testing.T, root, rel, data string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func javaGame(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	f, err := os.Create(filepath.Join(root, "game.jar"))
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\nMain-Class: com.example.Game\n",
		"com/example/Game.class": "\xca\xfe\xba\xbe\x00\x00\x00\x34",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(data))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return root
}

func gzdoomGame(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "foo.ipk3", "PK\x03\x04doom")
	writeFile(t, root, "music.pk3", "PK\x03\x04music")
	return root
}

func TestJavaPreview(t *testing.T) {
	h := newHarness(t, nil)
	root := javaGame(t)

	res, err := h.mgr.Launch(context.Background(), Request{Root: root, Mode: ModePreview})
	if err != nil {
		t.Fatal(err)
	}
	want := "extract " + filepath.Join(root, "game.jar") + " -> " + root + " [zip]"
	if len(res.Journal) != 3 || res.Journal[0] != want {
		t.Fatalf("unexpected journal %v", res.Journal)
	}
	if !strings.Contains(res.Journal[2], "-cp") || !strings.HasSuffix(res.Journal[2], "com.example.Game") {
		t.Errorf("unexpected run decision %q", res.Journal[2])
	}
	if _, err := os.Stat(filepath.Join(root, "META-INF")); !os.IsNotExist(err) {
		t.Error("preview must not extract")
	}
	if len(h.enf.applied) != 0 {
		t.Error("preview must not enforce")
	}
	if !strings.Contains(h.out.String(), "com.example.Game") {
		t.Errorf("preview output missing the launch:\n%s", h.out.String())
	}
}

func TestGZDoomScript(t *testing.T) {
	h := newHarness(t, nil)
	root := gzdoomGame(t)

	res, err := h.mgr.Launch(context.Background(), Request{Root: root, Mode: ModeScript})
	if err != nil {
		t.Fatal(err)
	}
	if res.Artifact != filepath.Join(h.cfg.GetScriptDir(), "foo.sh") {
		t.Errorf("unexpected artifact %s", res.Artifact)
	}
	data, err := os.ReadFile(res.Artifact)
	if err != nil {
		t.Fatal(err)
	}
	script := string(data)
	for _, want := range []string{
		"exec bwrap ",
		"-- gzdoom -iwad foo.ipk3 -file music.pk3\n",
		"--bind-try " + root + " " + root,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
	if strings.Contains(script, "--share-net") || !strings.Contains(script, "--unshare-net") {
		t.Errorf("network should be unshared by default:\n%s", script)
	}
}

func TestClassificationFailureEnforcesNothing(t *testing.T) {
	h := newHarness(t, nil)
	root := t.TempDir()
	writeFile(t, root, "readme.txt", "nothing to see")

	_, err := h.mgr.Launch(context.Background(), Request{Root: root, Mode: ModeImmediate})
	if !errors.Is(err, common.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
	var se *common.StageError
	if !errors.As(err, &se) || se.Stage != common.StageClassify {
		t.Fatalf("expected classify StageError, got %v", err)
	}
	if len(h.enf.applied) != 0 {
		t.Error("policy applied after a failed classification")
	}
	if _, err := os.Stat(filepath.Join(h.cfg.GetStateDir(), "history.json")); !os.IsNotExist(err) {
		t.Error("failed launch recorded in history")
	}
}

func TestMissingRoot(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.mgr.Launch(context.Background(), Request{Root: filepath.Join(t.TempDir(), "gone"), Mode: ModePreview})
	var se *common.StageError
	if !errors.As(err, &se) || se.Stage != common.StageClassify {
		t.Fatalf("expected classify StageError, got %v", err)
	}
}

func TestImmediateSetsUpAndConfines(t *testing.T) {
	h := newHarness(t, map[string]string{
		"config.json": `{
			// no runtime is installed in tests
			"tools": {"java": "/nonexistent/bin/java"},
			"network": true
		}`,
	})
	root := javaGame(t)

	_, err := h.mgr.Launch(context.Background(), Request{Root: root, Mode: ModeImmediate})
	var se *common.StageError
	if !errors.As(err, &se) || se.Stage != common.StageRun {
		t.Fatalf("expected the missing runtime to fail at run, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "META-INF", "MANIFEST.MF")); err != nil {
		t.Errorf("jar was not extracted: %v", err)
	}
	if len(h.enf.applied) != 1 {
		t.Fatalf("expected one enforcement, got %d", len(h.enf.applied))
	}
	policy := h.enf.applied[0]
	if !policy.Effective(filepath.Join(root, "save.dat")).Has(capability.RWC) {
		t.Error("game directory should be writable")
	}
	if !policy.Allows(capability.Inet) {
		t.Error("network was enabled in settings")
	}

	entry, ok := h.mgr.lastLaunch(root)
	if !ok || entry.Launches != 1 || entry.Engine != common.EngineJava {
		t.Errorf("unexpected history %+v", entry)
	}
}

func TestPolicyContributors(t *testing.T) {
	h := newHarness(t, map[string]string{
		"config.json": `{"paths": {"~/mods": "r", "/mnt/library": "rwc"}}`,
	})
	h.mgr.lookPath = func(name string) (string, error) { return "/opt/runtime/bin/" + name, nil }
	root := gzdoomGame(t)

	p, err := h.mgr.Inspect(root)
	if err != nil {
		t.Fatal(err)
	}
	spec, err := p.Adapter.BuildLaunch(p.Env, p.Game)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.mgr.buildPolicy(p, spec)
	if err != nil {
		t.Fatal(err)
	}
	policy := b.Seal()

	tests := []struct {
		path string
		want capability.Access
	}{
		{root, capability.RWC},
		{os.TempDir(), capability.RWC},
		{h.cfg.GetLogDir(), capability.RWC},
		{"/usr/lib/libc.so", capability.RX},
		{"/opt/runtime/bin/gzdoom", capability.RX},
		{filepath.Join(h.cfg.GetHostHome(), "mods", "x.pk3"), capability.Read},
		{"/mnt/library/game", capability.RWC},
	}
	for _, tt := range tests {
		if got := policy.Effective(tt.path); !got.Has(tt.want) {
			t.Errorf("Effective(%s) = %s, want at least %s", tt.path, got, tt.want)
		}
	}
	if policy.Allows(capability.Inet) {
		t.Error("network should be denied by default")
	}
}

func TestInvalidSettingsPath(t *testing.T) {
	h := newHarness(t, map[string]string{"config.json": `{"paths": {"/mnt": "rq"}}`})
	_, err := h.mgr.Launch(context.Background(), Request{Root: gzdoomGame(t), Mode: ModePreview})
	var se *common.StageError
	if !errors.As(err, &se) || se.Stage != common.StageLaunch {
		t.Fatalf("expected launch StageError, got %v", err)
	}
}

func TestSettingsEnvAndOverride(t *testing.T) {
	h := newHarness(t, map[string]string{
		"config.json": `{"env": {"SDL_VIDEODRIVER": "wayland"}}`,
		"overrides.star": `
def override(launch):
    if launch["engine"] == "gzdoom":
        launch["args"].append("+vid_fullscreen")
        launch["env"]["DOOMWADDIR"] = launch["dir"]
`,
	})
	root := gzdoomGame(t)
	res, err := h.mgr.Launch(context.Background(), Request{Root: root, Mode: ModePreview})
	if err != nil {
		t.Fatal(err)
	}
	run := res.Journal[len(res.Journal)-1]
	for _, want := range []string{"SDL_VIDEODRIVER=wayland", "DOOMWADDIR=" + root, "+vid_fullscreen"} {
		if !strings.Contains(run, want) {
			t.Errorf("run decision missing %q: %s", want, run)
		}
	}
}

func TestInfo(t *testing.T) {
	h := newHarness(t, nil)
	root := gzdoomGame(t)
	out, err := h.mgr.Info(root)
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]string{}
	for _, kv := range out.KV {
		values[kv.Key] = kv.Value
	}
	if values["engine"] != "gzdoom" {
		t.Errorf("unexpected engine %q", values["engine"])
	}
	if values["game"] != "foo (adapter)" {
		t.Errorf("unexpected game %q", values["game"])
	}
	if !strings.HasSuffix(values["size"], "in 2 files") {
		t.Errorf("unexpected size %q", values["size"])
	}
	if _, ok := values["last launch"]; ok {
		t.Error("no launch was recorded yet")
	}
}

func TestScriptName(t *testing.T) {
	tests := []struct {
		game common.GameIdentity
		root string
		want string
	}{
		{common.GameIdentity{Name: "Slay the Spire", Source: common.GameSourceKnown}, "/g/sts", "slay-the-spire"},
		{common.GameIdentity{Name: "Axiom Verge!", Source: common.GameSourceKnown}, "/g/av", "axiom-verge"},
		{common.GameIdentity{Name: common.UnknownGame, Source: common.GameSourceUnknown}, "/g/My Game", "my-game"},
		{common.GameIdentity{Name: "???", Source: common.GameSourceStore}, "/g/x", "game"},
	}
	for _, tt := range tests {
		if got := scriptName(&Plan{Root: tt.root, Game: tt.game}); got != tt.want {
			t.Errorf("scriptName(%q) = %q, want %q", tt.game.Name, got, tt.want)
		}
	}
}
