//go:build linux

package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Landlock rights per ABI version.
const (
	fsReadRights  = unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_READ_DIR
	fsWriteRights = unix.LANDLOCK_ACCESS_FS_WRITE_FILE
	fsExecRights  = unix.LANDLOCK_ACCESS_FS_EXECUTE
	fsMakeRights  = unix.LANDLOCK_ACCESS_FS_REMOVE_DIR | unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
		unix.LANDLOCK_ACCESS_FS_MAKE_CHAR | unix.LANDLOCK_ACCESS_FS_MAKE_DIR |
		unix.LANDLOCK_ACCESS_FS_MAKE_REG | unix.LANDLOCK_ACCESS_FS_MAKE_SOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_FIFO | unix.LANDLOCK_ACCESS_FS_MAKE_BLOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_SYM
	fsABI1 = fsReadRights | fsWriteRights | fsExecRights | fsMakeRights

	// Rights that may be granted on a non-directory.
	fsFileRights = unix.LANDLOCK_ACCESS_FS_READ_FILE | unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
		unix.LANDLOCK_ACCESS_FS_EXECUTE | unix.LANDLOCK_ACCESS_FS_TRUNCATE
)

// isolateNet is set when Landlock cannot deny TCP itself; PrepareChild
// then moves the game into an empty network namespace.
var isolateNet atomic.Bool

// applyPolicy restricts the calling thread with Landlock. Children forked
// from that thread inherit the domain, so the launcher keeps confinement and
// spawning on its locked main thread.
func applyPolicy(log *slog.Logger, s *Sealed) error {
	abi, err := landlockABI()
	if err != nil {
		return fmt.Errorf("landlock unavailable: %w", err)
	}
	log.Debug("Landlock available", "abi", abi)

	handled := uint64(fsABI1)
	if abi >= 2 {
		handled |= unix.LANDLOCK_ACCESS_FS_REFER
	}
	if abi >= 3 {
		handled |= unix.LANDLOCK_ACCESS_FS_TRUNCATE
	}

	attr := unix.LandlockRulesetAttr{Access_fs: handled}
	grants := s.Grants()
	if !s.Allows(Inet) {
		if abi >= 4 {
			// No net rules are added, so every TCP bind and connect is denied.
			attr.Access_net = unix.LANDLOCK_ACCESS_NET_BIND_TCP | unix.LANDLOCK_ACCESS_NET_CONNECT_TCP
		} else {
			log.Debug("Landlock cannot filter TCP, isolating network namespace", "abi", abi)
			isolateNet.Store(true)
			// The runtime writes the child's uid_map and gid_map after clone.
			grants = append(grants, Grant{Path: "/proc", Access: Write})
		}
	}

	fd, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET,
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		return fmt.Errorf("landlock_create_ruleset: %w", errno)
	}
	ruleset := int(fd)
	defer unix.Close(ruleset)

	for _, g := range grants {
		if err := addPathRule(ruleset, g, handled); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug("Skipping missing path", "path", g.Path)
				continue
			}
			return err
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_LANDLOCK_RESTRICT_SELF, uintptr(ruleset), 0, 0); errno != 0 {
		return fmt.Errorf("landlock_restrict_self: %w", errno)
	}
	return nil
}

func landlockABI() (int, error) {
	v, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET, 0, 0, unix.LANDLOCK_CREATE_RULESET_VERSION)
	if errno != 0 {
		return 0, errno
	}
	return int(v), nil
}

func addPathRule(ruleset int, g Grant, handled uint64) error {
	fd, err := unix.Open(g.Path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		if err == unix.ENOENT {
			return os.ErrNotExist
		}
		return fmt.Errorf("open %s: %w", g.Path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("stat %s: %w", g.Path, err)
	}

	allowed := pathRights(g.Access, handled, st.Mode&unix.S_IFMT == unix.S_IFDIR)
	if allowed == 0 {
		return nil
	}

	rule := unix.LandlockPathBeneathAttr{Allowed_access: allowed, Parent_fd: int32(fd)}
	_, _, errno := unix.Syscall6(unix.SYS_LANDLOCK_ADD_RULE, uintptr(ruleset),
		unix.LANDLOCK_RULE_PATH_BENEATH, uintptr(unsafe.Pointer(&rule)), 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("landlock_add_rule %s: %w", g.Path, errno)
	}
	return nil
}

// pathRights is what a rule on one path may carry. Landlock rejects
// directory-only rights on anything but a directory.
func pathRights(a Access, handled uint64, isDir bool) uint64 {
	allowed := landlockRights(a) & handled
	if !isDir {
		allowed &= fsFileRights
	}
	return allowed
}

func landlockRights(a Access) uint64 {
	var r uint64
	if a.Has(Read) {
		r |= fsReadRights
	}
	if a.Has(Write) {
		r |= fsWriteRights | unix.LANDLOCK_ACCESS_FS_TRUNCATE
	}
	if a.Has(Create) {
		r |= fsMakeRights | unix.LANDLOCK_ACCESS_FS_REFER
	}
	if a.Has(Execute) {
		r |= fsExecRights
	}
	return r
}

// PrepareChild puts cmd in fresh user and network namespaces when the
// applied policy denies the network but Landlock could not. The child's
// uid and gid map to the caller's own ids. Flags pty.Start sets later are
// merged into the same SysProcAttr.
func PrepareChild(cmd *exec.Cmd) {
	if !isolateNet.Load() {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	attr := cmd.SysProcAttr
	attr.Cloneflags |= syscall.CLONE_NEWUSER | syscall.CLONE_NEWNET
	attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: os.Getuid(), HostID: os.Getuid(), Size: 1}}
	attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: os.Getgid(), HostID: os.Getgid(), Size: 1}}
	attr.GidMappingsEnableSetgroups = false
}

// NetworkIsolated reports whether PrepareChild adds namespaces.
func NetworkIsolated() bool { return isolateNet.Load() }
