package engine

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"glaunch/pkg/common"
)

// FallbackJavaVersion is used when no requirement resolves.
const FallbackJavaVersion = "1.8.0"

var installableJava = map[common.OSType][]string{
	common.OSOpenBSD: {"1.8.0", "11", "17", "21"},
	common.OSFreeBSD: {"1.8.0", "11", "17", "21"},
	common.OSLinux:   {"1.8.0", "11", "17", "21"},
}

// InstallableJavaVersions returns the Java versions the host's package
// system offers.
func InstallableJavaVersions(osType common.OSType) []string {
	return installableJava[osType]
}

// ResolveJavaVersion picks the highest hint present in installable. Hints
// outside installable do not bind. Without any binding hint the result is
// FallbackJavaVersion.
func ResolveJavaVersion(installable []string, hints ...string) string {
	var best *semver.Version
	var bestName string
	for _, h := range hints {
		h = NormalizeJavaVersion(h)
		if h == "" || !containsVersion(installable, h) {
			continue
		}
		v, err := semver.NewVersion(h)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestName = v, h
		}
	}
	if best == nil {
		return FallbackJavaVersion
	}
	return bestName
}

func containsVersion(set []string, v string) bool {
	for _, s := range set {
		if NormalizeJavaVersion(s) == v {
			return true
		}
	}
	return false
}

// NormalizeJavaVersion maps a Java version string to the names packages
// use: "1.8.0_292" and "8" become "1.8.0", "17.0.2+8" becomes "17".
func NormalizeJavaVersion(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "1.") {
		parts := strings.SplitN(s, ".", 3)
		if len(parts) >= 2 && parts[1] == "8" {
			return "1.8.0"
		}
		return strings.SplitN(s, "_", 2)[0]
	}
	major := s
	if i := strings.IndexAny(s, ".+-_"); i >= 0 {
		major = s[:i]
	}
	if _, err := strconv.Atoi(major); err != nil {
		return ""
	}
	if major == "8" {
		return "1.8.0"
	}
	return major
}

// classFileVersion maps a class file major version to a Java version.
func classFileVersion(major uint16) string {
	switch {
	case major < 52:
		return ""
	case major == 52:
		return "1.8.0"
	default:
		return strconv.Itoa(int(major) - 44)
	}
}

var releaseVersion = regexp.MustCompile(`(?m)^JAVA_VERSION="?([^"\s]+)"?`)

// embeddedVersion matches version strings compiled into JVM binaries.
var embeddedVersion = regexp.MustCompile(`(?:openjdk|java)[ -](?:version[ "]*)?(1\.8\.0_\d+|\d{2}(?:\.\d+){0,2})`)

// bundledJavaHint looks for the version of a JRE shipped with the game.
func bundledJavaHint(root string) (string, bool) {
	if data, err := os.ReadFile(filepath.Join(root, "jre", "release")); err == nil {
		if m := releaseVersion.FindSubmatch(data); m != nil {
			return NormalizeJavaVersion(string(m[1])), true
		}
	}
	for _, bin := range []string{"jre/bin/java", "jre/lib/server/libjvm.so", "jre/lib/amd64/server/libjvm.so"} {
		if v, ok := scanForVersion(filepath.Join(root, filepath.FromSlash(bin))); ok {
			return v, true
		}
	}
	return "", false
}

func scanForVersion(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(bufio.NewReader(f), 64<<20))
	if err != nil {
		return "", false
	}
	if m := embeddedVersion.FindSubmatch(bytes.ToLower(data)); m != nil {
		return NormalizeJavaVersion(string(m[1])), true
	}
	return "", false
}

const maxClassesPerJar = 4096

// dependencyJavaHint returns the version needed by the newest class file in
// the given jars.
func dependencyJavaHint(jars []string) (string, bool) {
	var newest uint16
	for _, jar := range jars {
		if m := jarClassVersion(jar); m > newest {
			newest = m
		}
	}
	v := classFileVersion(newest)
	return v, v != ""
}

func jarClassVersion(path string) uint16 {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0
	}
	defer r.Close()

	var newest uint16
	seen := 0
	for _, f := range r.File {
		if !strings.HasSuffix(f.Name, ".class") || strings.HasSuffix(f.Name, "module-info.class") {
			continue
		}
		if seen++; seen > maxClassesPerJar {
			break
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		var hdr [8]byte
		_, err = io.ReadFull(rc, hdr[:])
		rc.Close()
		if err != nil || binary.BigEndian.Uint32(hdr[:4]) != 0xCAFEBABE {
			continue
		}
		if m := binary.BigEndian.Uint16(hdr[6:]); m > newest {
			newest = m
		}
	}
	return newest
}

// javaBinary locates the java executable for version.
func javaBinary(env *Env, version string) string {
	if tool := env.Settings.Tool("java"); tool != "java" {
		return tool
	}
	var pattern string
	switch env.OS {
	case common.OSOpenBSD:
		pattern = "/usr/local/jdk-" + version + "/bin/java"
	case common.OSFreeBSD:
		pattern = "/usr/local/openjdk" + strings.TrimPrefix(version, "1.") + "/bin/java"
		if version == FallbackJavaVersion {
			pattern = "/usr/local/openjdk8/bin/java"
		}
	default:
		major := version
		if version == FallbackJavaVersion {
			major = "8"
		}
		pattern = "/usr/lib/jvm/java-" + major + "-openjdk*/bin/java"
	}
	if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
		return matches[0]
	}
	return env.Tool("java")
}

// javaHome returns the directory a java binary lives in, two levels up.
func javaHome(bin string) string {
	if !filepath.IsAbs(bin) {
		return ""
	}
	return filepath.Dir(filepath.Dir(bin))
}
