package capability

import (
	"os"
	"path/filepath"

	"glaunch/pkg/common"
)

// PlatformDefaults returns the grants every launch needs on the host:
// system libraries, device nodes and display/audio sockets.
func PlatformDefaults(osType common.OSType) []Grant {
	var grants []Grant
	switch osType {
	case common.OSOpenBSD:
		grants = []Grant{
			{"/usr/lib", RX},
			{"/usr/libexec", RX},
			{"/usr/local/lib", RX},
			{"/usr/local/share", Read},
			{"/usr/X11R6", RX},
			{"/usr/share", Read},
			{"/etc/fonts", Read},
			{"/etc/resolv.conf", Read},
			{"/etc/localtime", Read},
			{"/dev", Read | Write},
			{"/tmp/.X11-unix", Read | Write},
		}
	default:
		grants = []Grant{
			{"/usr", RX},
			{"/lib", RX},
			{"/lib64", RX},
			{"/bin", RX},
			{"/etc", Read},
			{"/proc", Read},
			{"/sys", Read},
			{"/dev", Read | Write},
			{"/tmp/.X11-unix", Read | Write},
		}
	}
	if rt := os.Getenv("XDG_RUNTIME_DIR"); rt != "" {
		grants = append(grants, Grant{rt, RWC})
	}
	if xa := os.Getenv("XAUTHORITY"); xa != "" {
		grants = append(grants, Grant{xa, Read})
	}
	return grants
}

// DefaultPromises are the syscall categories a graphical game needs.
var DefaultPromises = []Promise{
	Stdio, RPath, WPath, CPath, Flock, Fattr, Unix, Tty,
	Proc, Exec, ProtExec, Audio, Video, SendFD, RecvFD, Ps, VMInfo, GetPW,
}

// NetworkPromises are added when the user allows network access.
var NetworkPromises = []Promise{Inet, DNS}

// HomeGrant grants RWC on a directory under home.
func HomeGrant(home string, rel ...string) Grant {
	return Grant{Path: filepath.Join(append([]string{home}, rel...)...), Access: RWC}
}
