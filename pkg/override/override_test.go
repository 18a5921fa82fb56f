package override

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"glaunch/pkg/common"
)

var celeste = common.GameIdentity{Name: "Celeste", Source: common.GameSourceKnown}

func baseSpec() *common.LaunchSpec {
	return &common.LaunchSpec{
		Exe:  "mono",
		Args: []string{"Celeste.exe"},
		Env:  []string{"MONO_ENV_OPTIONS=--gc=sgen", "LD_LIBRARY_PATH=/games/celeste/lib64"},
		Dir:  "/games/celeste",
	}
}

func compile(t *testing.T, src string) *Hook {
	t.Helper()
	h, err := Compile("overrides.star", []byte(src), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return h
}

func TestMutateInPlace(t *testing.T) {
	h := compile(t, `
def override(launch):
    if launch["game"] == "Celeste" and launch["engine"] == "mono":
        launch["env"]["FNA_OPENGL_FORCE_ES3"] = "1"
        launch["env"]["MONO_ENV_OPTIONS"] = "--gc=boehm"
        launch["args"].append("--windowed")
`)
	spec := baseSpec()
	got, err := h.Apply(celeste, common.EngineMono, spec)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Args, []string{"Celeste.exe", "--windowed"}) {
		t.Errorf("unexpected args %v", got.Args)
	}
	wantEnv := []string{
		"MONO_ENV_OPTIONS=--gc=boehm",
		"LD_LIBRARY_PATH=/games/celeste/lib64",
		"FNA_OPENGL_FORCE_ES3=1",
	}
	if !slices.Equal(got.Env, wantEnv) {
		t.Errorf("unexpected env %v", got.Env)
	}
	if !slices.Equal(spec.Args, baseSpec().Args) {
		t.Errorf("input spec was modified: %v", spec.Args)
	}
}

func TestReturnReplacement(t *testing.T) {
	h := compile(t, `
def override(launch):
    return {"exe": "/opt/mono/bin/mono", "args": ["--debug"] + launch["args"]}
`)
	got, err := h.Apply(celeste, common.EngineMono, baseSpec())
	if err != nil {
		t.Fatal(err)
	}
	if got.Exe != "/opt/mono/bin/mono" {
		t.Errorf("unexpected exe %s", got.Exe)
	}
	if !slices.Equal(got.Args, []string{"--debug", "Celeste.exe"}) {
		t.Errorf("unexpected args %v", got.Args)
	}
	// Keys missing from the replacement keep their values.
	if got.Dir != "/games/celeste" || len(got.Env) != 2 {
		t.Errorf("dir and env should be kept: %+v", got)
	}
}

func TestOtherGamesUntouched(t *testing.T) {
	h := compile(t, `
def override(launch):
    if launch["game"] == "Terraria":
        launch["args"] = []
`)
	got, err := h.Apply(celeste, common.EngineMono, baseSpec())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Args, baseSpec().Args) {
		t.Errorf("unexpected args %v", got.Args)
	}
}

func TestBuiltins(t *testing.T) {
	h := compile(t, `
def override(launch):
    cfg = json.decode(data = '{"launch": {"args": ["-fullscreen", "0"]}}')
    launch["args"].extend(jq.query(query = ".launch.args[]", value = cfg))
    launch["env"]["LAUNCH"] = json.encode(value = launch["game"])
`)
	got, err := h.Apply(celeste, common.EngineMono, baseSpec())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Args, []string{"Celeste.exe", "-fullscreen", "0"}) {
		t.Errorf("unexpected args %v", got.Args)
	}
	if !slices.Contains(got.Env, `LAUNCH="Celeste"`) {
		t.Errorf("unexpected env %v", got.Env)
	}
}

func TestStrictBuiltinRejectsPositional(t *testing.T) {
	h := compile(t, `
def override(launch):
    json.decode("{}")
`)
	_, err := h.Apply(celeste, common.EngineMono, baseSpec())
	if err == nil || !strings.Contains(err.Error(), "keyword-only") {
		t.Fatalf("expected keyword-only error, got %v", err)
	}
}

func TestInvalidResults(t *testing.T) {
	tests := map[string]string{
		"not a dict":     "def override(launch):\n    return 3\n",
		"args not list":  "def override(launch):\n    launch[\"args\"] = \"x\"\n",
		"env value type": "def override(launch):\n    launch[\"env\"][\"A\"] = 1\n",
		"empty exe":      "def override(launch):\n    launch[\"exe\"] = \"\"\n",
		"runtime error":  "def override(launch):\n    fail(\"nope\")\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := compile(t, src).Apply(celeste, common.EngineMono, baseSpec())
			var se *common.StageError
			if !errors.As(err, &se) || se.Stage != common.StageLaunch {
				t.Fatalf("expected launch StageError, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	h, err := Load(filepath.Join(dir, "overrides.star"), nil)
	if err != nil || h != nil {
		t.Fatalf("missing file should yield no hook, got %v %v", h, err)
	}
	// A nil hook leaves the spec alone.
	spec := baseSpec()
	if got, err := h.Apply(celeste, common.EngineMono, spec); err != nil || got != spec {
		t.Errorf("nil hook changed the spec: %v %v", got, err)
	}

	path := filepath.Join(dir, "overrides.star")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if h, err := Load(path, nil); err != nil || h != nil {
		t.Errorf("file without hook should yield no hook, got %v %v", h, err)
	}

	if err := os.WriteFile(path, []byte("override = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Error("expected an error when override is not callable")
	}

	if err := os.WriteFile(path, []byte("def override(:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Error("expected a syntax error")
	}
}

func TestKeywordArgumentsChecked(t *testing.T) {
	tests := map[string]string{
		"missing":    "def override(launch):\n    jq.query(query = \".\")\n",
		"unexpected": "def override(launch):\n    json.encode(value = 1, indent = 2)\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := compile(t, src).Apply(celeste, common.EngineMono, baseSpec())
			if err == nil || !strings.Contains(err.Error(), "usage: ") {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}
}

func TestJQNumbersRoundTrip(t *testing.T) {
	h := compile(t, `
def override(launch):
    n = jq.query(query = ".w * 2", value = {"w": 640})
    launch["args"].append(str(n))
`)
	got, err := h.Apply(celeste, common.EngineMono, baseSpec())
	if err != nil {
		t.Fatal(err)
	}
	if got.Args[len(got.Args)-1] != "1280" {
		t.Errorf("unexpected args %v", got.Args)
	}
}
