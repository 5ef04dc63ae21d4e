package formula

import (
	"fmt"
	"strings"
)

// MountKind is the discriminant of a Mount (spec.md §3.2).
type MountKind string

const (
	MountReadOnly  MountKind = "ro"
	MountReadWrite MountKind = "rw"
	MountOverlay   MountKind = "overlay"
)

// Mount mounts a host path into the sandbox, read-only, read-write, or
// as an overlay (the latter reserved/unimplemented per spec.md §9).
type Mount struct {
	Kind     MountKind
	HostPath string
}

// String renders the "<kind>:<host>" stringoid wire form.
func (m Mount) String() string {
	return string(m.Kind) + ":" + m.HostPath
}

// ParseMount parses the "ro:<host>" / "rw:<host>" / "overlay:<host>"
// stringoid form.
func ParseMount(s string) (Mount, error) {
	kind, host, ok := strings.Cut(s, ":")
	if !ok {
		return Mount{}, fmt.Errorf("invalid mount %q: expected '<kind>:<host>'", s)
	}
	switch MountKind(kind) {
	case MountReadOnly, MountReadWrite, MountOverlay:
		return Mount{Kind: MountKind(kind), HostPath: host}, nil
	default:
		return Mount{}, fmt.Errorf("invalid mount kind %q", kind)
	}
}
