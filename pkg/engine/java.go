package engine

import (
	"archive/zip"
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"glaunch/pkg/archive"
	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/manifest"
)

// Java launches JVM games, typically libGDX or LWJGL titles bundled with
// packr. The bundled JRE is ignored in favour of a system JDK.
type Java struct{}

func (*Java) Kind() common.EngineKind { return common.EngineJava }

// packrConfig is the subset of packr's config.json that matters.
type packrConfig struct {
	mainClass string
	classPath []string
	vmArgs    []string
}

func loadPackrConfig(env *Env) packrConfig {
	var cfg packrConfig
	if doc, err := manifest.Load(env.Path("config.json")); err == nil {
		cfg.mainClass, _ = doc.String(".mainClass")
		cfg.classPath = doc.Strings(".classPath[]?")
		cfg.vmArgs = doc.Strings(".vmArgs[]?")
	} else if !os.IsNotExist(err) {
		env.logger().Warn("ignoring unreadable packr config", "error", err)
	}
	if len(cfg.classPath) == 0 {
		cfg.classPath = env.Glob("*.jar")
	}
	// A jar fused into a launcher executable is only known from the
	// content pass.
	if len(cfg.classPath) == 0 {
		if ev, ok := env.evidence(); ok && isZip(env.Path(ev)) {
			cfg.classPath = []string{ev}
		}
	}
	return cfg
}

func (*Java) ExtraCapabilities(env *Env) []capability.Grant {
	var grants []capability.Grant
	var homes []string
	switch env.OS {
	case common.OSOpenBSD:
		homes, _ = filepath.Glob("/usr/local/jdk-*")
	case common.OSFreeBSD:
		homes, _ = filepath.Glob("/usr/local/openjdk*")
	default:
		homes = []string{"/usr/lib/jvm"}
	}
	for _, h := range homes {
		grants = append(grants, capability.Grant{Path: h, Access: capability.RX})
	}
	return append(grants, env.homeGrants(".prefs", ".java", ".local/share", ".config")...)
}

// Setup unpacks the class path into the game directory unless a previous
// run already did, which leaves META-INF/MANIFEST.MF behind.
func (*Java) Setup(env *Env) ([]common.TransformRequest, error) {
	if env.Exists("META-INF", "MANIFEST.MF") {
		return nil, nil
	}
	var reqs []common.TransformRequest
	for _, jar := range loadPackrConfig(env).classPath {
		if !env.Exists(jar) {
			continue
		}
		reqs = append(reqs, common.Extract{
			Archive: env.Path(jar),
			Dest:    env.Root,
			Handler: string(archive.HandlerZip),
		})
	}
	return reqs, nil
}

func (j *Java) BuildLaunch(env *Env, _ common.GameIdentity) (*common.LaunchSpec, error) {
	cfg := loadPackrConfig(env)

	mainClass := cfg.mainClass
	if mainClass == "" {
		mainClass = manifestMainClass(env, cfg.classPath)
	}
	if mainClass == "" {
		return nil, unresolved(env, "java main class")
	}

	jars := make([]string, 0, len(cfg.classPath))
	for _, jar := range cfg.classPath {
		jars = append(jars, env.Path(jar))
	}
	var hints []string
	if v, ok := bundledJavaHint(env.Root); ok {
		hints = append(hints, v)
	}
	if v, ok := dependencyJavaHint(jars); ok {
		hints = append(hints, v)
	}
	installable := env.JavaVersions
	if len(installable) == 0 {
		installable = InstallableJavaVersions(env.OS)
	}
	version := ResolveJavaVersion(installable, hints...)
	env.logger().Debug("resolved java version", "version", version, "hints", hints, "installable", installable)

	exe := javaBinary(env, version)
	spec := &common.LaunchSpec{Exe: exe, Dir: env.Root}
	for _, a := range cfg.vmArgs {
		if !strings.HasPrefix(a, "-") {
			a = "-" + a
		}
		spec.Args = append(spec.Args, a)
	}
	cp := append([]string{"."}, cfg.classPath...)
	spec.Args = append(spec.Args, "-cp", strings.Join(cp, ":"), mainClass)

	if home := javaHome(exe); home != "" {
		spec.SetEnv("JAVA_HOME", home)
	}
	spec.SetEnv("LD_LIBRARY_PATH", env.Root)
	return spec, nil
}

// manifestMainClass reads Main-Class from an unpacked manifest or from the
// first jar carrying one.
func manifestMainClass(env *Env, classPath []string) string {
	if f, err := os.Open(env.Path("META-INF", "MANIFEST.MF")); err == nil {
		defer f.Close()
		if mc := parseMainClass(f); mc != "" {
			return mc
		}
	}
	for _, jar := range classPath {
		if mc := jarMainClass(env.Path(jar)); mc != "" {
			return mc
		}
	}
	return ""
}

func jarMainClass(path string) string {
	r, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer r.Close()
	rc, err := r.Open("META-INF/MANIFEST.MF")
	if err != nil {
		return ""
	}
	defer rc.Close()
	return parseMainClass(rc)
}

func parseMainClass(r io.Reader) string {
	sc := bufio.NewScanner(r)
	var value string
	inMain := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case inMain && strings.HasPrefix(line, " "):
			value += line[1:]
			continue
		case inMain:
			return value
		}
		if k, v, ok := strings.Cut(line, ":"); ok && strings.EqualFold(k, "Main-Class") {
			value = strings.TrimSpace(v)
			inMain = true
		}
	}
	return value
}
