package launcher

import (
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"glaunch/pkg/display"
)

// Info describes what a launch of root would run, without setting it up.
func (m *manager) Info(root string) (*display.Output, error) {
	p, err := m.Inspect(root)
	if err != nil {
		return nil, err
	}
	size, files := dirSize(p.Root)
	out := &display.Output{
		Message: p.Game.Name,
		KV: []display.KV{
			{Key: "engine", Value: string(p.Kind)},
			{Key: "evidence", Value: p.Evidence.String()},
			{Key: "game", Value: p.Game.Name + " (" + string(p.Game.Source) + ")"},
			{Key: "dir", Value: p.Root},
			{Key: "size", Value: humanize.Bytes(uint64(size)) + " in " + strconv.Itoa(files) + " files"},
		},
	}
	if e, ok := m.lastLaunch(p.Root); ok {
		out.KV = append(out.KV, display.KV{
			Key:   "last launch",
			Value: humanize.Time(e.Last) + ", " + humanize.Ordinal(e.Launches) + " launch",
		})
	}
	return out, nil
}

// dirSize is the total size and count of regular files under path.
func dirSize(path string) (int64, int) {
	var size int64
	var count int
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
				count++
			}
		}
		return nil
	})
	return size, count
}
