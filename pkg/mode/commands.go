package mode

import (
	"fmt"
	"strings"

	"glaunch/pkg/archive"
	"glaunch/pkg/common"
	"glaunch/pkg/config"
)

// codecs maps a codec hint to the ffmpeg encoder producing it.
var codecs = map[string]string{
	"vorbis": "libvorbis",
	"opus":   "libopus",
	"flac":   "flac",
	"pcm":    "pcm_s16le",
}

// convertArgv is the ffmpeg invocation for c.
func convertArgv(settings *config.Settings, c common.Convert) ([]string, error) {
	enc, ok := codecs[c.Codec]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", c.Codec)
	}
	return []string{
		settings.Tool("ffmpeg"), "-nostdin", "-y", "-loglevel", "error",
		"-i", c.Source, "-vn", "-c:a", enc, c.Dest,
	}, nil
}

// externalExtractors build the argv of tools handling formats the archive
// package does not.
var externalExtractors = map[string]func(tool, archive, dest string) []string{
	"innoextract": func(tool, a, d string) []string { return []string{tool, "-q", "-s", "-d", d, a} },
	"7z":          func(tool, a, d string) []string { return []string{tool, "x", "-y", "-o" + d, a} },
	"unrar":       func(tool, a, d string) []string { return []string{tool, "x", "-o+", a, d + "/"} },
}

func externalExtractArgv(settings *config.Settings, e common.Extract) ([]string, error) {
	build, ok := externalExtractors[e.Handler]
	if !ok {
		return nil, fmt.Errorf("no extractor for handler %q", e.Handler)
	}
	return build(settings.Tool(e.Handler), e.Archive, e.Dest), nil
}

// extractShell is the sh command line replaying e.
func extractShell(settings *config.Settings, e common.Extract) (string, error) {
	a, d := shellQuote(e.Archive), shellQuote(e.Dest)
	switch archive.Handler(e.Handler) {
	case archive.HandlerZip:
		return fmt.Sprintf("%s -o -q %s -d %s", shellQuote(settings.Tool("unzip")), a, d), nil
	case archive.HandlerTar:
		return fmt.Sprintf("tar -xf %s -C %s", a, d), nil
	case archive.HandlerTarGz:
		return fmt.Sprintf("tar -xzf %s -C %s", a, d), nil
	case archive.HandlerTarZst:
		return fmt.Sprintf("%s -dc %s | tar -xf - -C %s", shellQuote(settings.Tool("zstd")), a, d), nil
	case archive.HandlerTarLz4:
		return fmt.Sprintf("%s -dc %s | tar -xf - -C %s", shellQuote(settings.Tool("lz4")), a, d), nil
	}
	argv, err := externalExtractArgv(settings, e)
	if err != nil {
		return "", err
	}
	return shellJoin(argv), nil
}

// shellQuote returns s unchanged when it contains no shell metacharacters
// and single quoted otherwise.
func shellQuote(s string) string {
	safe := s != ""
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '-', '_', '.', '/', ':', '=', '+', ',', '@':
		return true
	}
	return false
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
