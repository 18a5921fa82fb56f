package engine

import (
	"archive/zip"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"glaunch/pkg/archive"
	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/manifest"
)

// NWJS runs HTML5 games (RPG Maker MV/MZ, Construct) with the system NW.js.
type NWJS struct{}

func (*NWJS) Kind() common.EngineKind { return common.EngineNWJS }

func (*NWJS) ExtraCapabilities(env *Env) []capability.Grant {
	return env.homeGrants(".config", ".cache")
}

// Setup unpacks package.nw when the app manifest is not already in the
// game directory and links the bundled ffmpeg to the system build.
func (*NWJS) Setup(env *Env) ([]common.TransformRequest, error) {
	var reqs []common.TransformRequest
	if !env.Exists("package.json") && isZip(env.Path("package.nw")) {
		reqs = append(reqs, common.Extract{
			Archive: env.Path("package.nw"),
			Dest:    env.Root,
			Handler: string(archive.HandlerZip),
		})
	}
	return append(reqs, replaceWithSystem(env, []string{"lib/libffmpeg.so"})...), nil
}

func (*NWJS) BuildLaunch(env *Env, _ common.GameIdentity) (*common.LaunchSpec, error) {
	if !env.Exists("package.json") && !env.Exists("package.nw") {
		return nil, unresolved(env, "nw.js package.json")
	}
	return &common.LaunchSpec{
		Exe:  env.Tool("nw"),
		Args: []string{"."},
		Dir:  env.Root,
	}, nil
}

// DetectGame uses the <title> of the main page, then the window title and
// name from package.json.
func (*NWJS) DetectGame(env *Env) (string, bool) {
	main := "index.html"
	doc, err := manifest.Load(env.Path("package.json"))
	if err == nil {
		if m, ok := doc.String(".main"); ok && strings.HasSuffix(m, ".html") {
			main = strings.TrimPrefix(m, "./")
		}
	}
	for _, page := range []string{main, "www/index.html"} {
		if title, ok := htmlTitle(env.Path(page)); ok {
			return title, true
		}
	}
	if doc == nil {
		return "", false
	}
	if title, ok := doc.String(".window.title"); ok {
		return title, true
	}
	return doc.String(".name")
}

func htmlTitle(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	node, err := html.Parse(f)
	if err != nil {
		return "", false
	}
	title := strings.TrimSpace(goquery.NewDocumentFromNode(node).Find("title").First().Text())
	return title, title != ""
}

func isZip(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	r.Close()
	return true
}
