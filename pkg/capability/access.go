package capability

import (
	"fmt"
	"strings"
)

// Access is a set of filesystem access modes.
type Access uint8

const (
	Read Access = 1 << iota
	Write
	Create
	Execute
)

const (
	// RX is the usual grant for runtime and library trees.
	RX = Read | Execute
	// RWC is the usual grant for directories the game writes into.
	RWC = Read | Write | Create
)

// ParseAccess converts an unveil-style mode string such as "rwcx".
func ParseAccess(s string) (Access, error) {
	var a Access
	for _, c := range s {
		switch c {
		case 'r':
			a |= Read
		case 'w':
			a |= Write
		case 'c':
			a |= Create
		case 'x':
			a |= Execute
		default:
			return 0, fmt.Errorf("invalid access mode %q in %q", c, s)
		}
	}
	return a, nil
}

// Has reports whether every mode of o is present in a.
func (a Access) Has(o Access) bool { return a&o == o }

// String renders the set in unveil order, e.g. "rwcx".
func (a Access) String() string {
	var sb strings.Builder
	if a.Has(Read) {
		sb.WriteByte('r')
	}
	if a.Has(Write) {
		sb.WriteByte('w')
	}
	if a.Has(Create) {
		sb.WriteByte('c')
	}
	if a.Has(Execute) {
		sb.WriteByte('x')
	}
	return sb.String()
}

// Promise is a syscall category the launched process may use.
// Names follow pledge(2).
type Promise string

const (
	Stdio    Promise = "stdio"
	RPath    Promise = "rpath"
	WPath    Promise = "wpath"
	CPath    Promise = "cpath"
	Flock    Promise = "flock"
	Fattr    Promise = "fattr"
	Unix     Promise = "unix"
	Inet     Promise = "inet"
	DNS      Promise = "dns"
	Tty      Promise = "tty"
	Proc     Promise = "proc"
	Exec     Promise = "exec"
	ProtExec Promise = "prot_exec"
	Audio    Promise = "audio"
	Video    Promise = "video"
	SendFD   Promise = "sendfd"
	RecvFD   Promise = "recvfd"
	Ps       Promise = "ps"
	VMInfo   Promise = "vminfo"
	GetPW    Promise = "getpw"
)

// promiseOrder fixes the rendering order of promises.
var promiseOrder = []Promise{
	Stdio, RPath, WPath, CPath, Flock, Fattr, Unix, Inet, DNS, Tty,
	Proc, Exec, ProtExec, Audio, Video, SendFD, RecvFD, Ps, VMInfo, GetPW,
}

// Grant pairs a path with the access it needs.
type Grant struct {
	Path   string
	Access Access
}

func (g Grant) String() string {
	return fmt.Sprintf("%s %s", g.Access, g.Path)
}
