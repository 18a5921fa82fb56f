//go:build linux

package capability

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

func TestLandlockRights(t *testing.T) {
	tests := []struct {
		access Access
		want   uint64
	}{
		{0, 0},
		{Read, unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_READ_DIR},
		{Write, unix.LANDLOCK_ACCESS_FS_WRITE_FILE | unix.LANDLOCK_ACCESS_FS_TRUNCATE},
		{Execute, unix.LANDLOCK_ACCESS_FS_EXECUTE},
		{RX, fsReadRights | fsExecRights},
		{Create, fsMakeRights | unix.LANDLOCK_ACCESS_FS_REFER},
		{RWC, fsReadRights | fsWriteRights | fsMakeRights |
			unix.LANDLOCK_ACCESS_FS_TRUNCATE | unix.LANDLOCK_ACCESS_FS_REFER},
	}
	for _, tt := range tests {
		if got := landlockRights(tt.access); got != tt.want {
			t.Errorf("landlockRights(%s) = %#x, want %#x", tt.access, got, tt.want)
		}
	}
}

func TestPathRightsMasksFiles(t *testing.T) {
	all := uint64(fsABI1 | unix.LANDLOCK_ACCESS_FS_REFER | unix.LANDLOCK_ACCESS_FS_TRUNCATE)
	tests := []struct {
		name    string
		access  Access
		handled uint64
		isDir   bool
		want    uint64
	}{
		{"dir keeps read_dir", Read, all, true, fsReadRights},
		{"file drops read_dir", Read, all, false, unix.LANDLOCK_ACCESS_FS_READ_FILE},
		{"file drops make and refer", RWC, all, false,
			unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_WRITE_FILE | unix.LANDLOCK_ACCESS_FS_TRUNCATE},
		{"create only on file", Create, all, false, 0},
		{"abi 1 has no truncate", Write, fsABI1, false, unix.LANDLOCK_ACCESS_FS_WRITE_FILE},
		{"abi 1 has no refer", Create, fsABI1, true, fsMakeRights},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pathRights(tt.access, tt.handled, tt.isDir)
			if got != tt.want {
				t.Errorf("got %#x, want %#x", got, tt.want)
			}
			if got&^tt.handled != 0 {
				t.Errorf("%#x carries rights outside handled %#x", got, tt.handled)
			}
		})
	}
}

func TestApplyTwicePanics(t *testing.T) {
	// Mark the process as already confined so no ruleset is ever built here.
	prev := applied.Swap(true)
	t.Cleanup(func() { applied.Store(prev) })

	e := NewEnforcer(nil)
	expectMisuse(t, "apply twice", func() {
		e.Apply(NewBuilder().Seal())
	})
}

func TestPrepareChildIsolatesNetwork(t *testing.T) {
	t.Cleanup(func() { isolateNet.Store(false) })

	cmd := exec.Command("/bin/true")
	PrepareChild(cmd)
	if cmd.SysProcAttr != nil {
		t.Fatalf("SysProcAttr set without isolation: %+v", cmd.SysProcAttr)
	}

	isolateNet.Store(true)
	cmd = exec.Command("/bin/true")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	PrepareChild(cmd)
	attr := cmd.SysProcAttr
	if !attr.Setsid {
		t.Error("Setsid was dropped")
	}
	want := uintptr(syscall.CLONE_NEWUSER | syscall.CLONE_NEWNET)
	if attr.Cloneflags&want != want {
		t.Errorf("Cloneflags = %#x, want %#x set", attr.Cloneflags, want)
	}
	if len(attr.UidMappings) != 1 || attr.UidMappings[0].HostID != os.Getuid() || attr.UidMappings[0].ContainerID != os.Getuid() {
		t.Errorf("UidMappings = %+v", attr.UidMappings)
	}
	if len(attr.GidMappings) != 1 || attr.GidMappings[0].HostID != os.Getgid() {
		t.Errorf("GidMappings = %+v", attr.GidMappings)
	}
	if !NetworkIsolated() {
		t.Error("NetworkIsolated() = false")
	}
}
