// Package wareid defines the content-identifier value types shared by
// formulas and plots: WareID, Packtype, and WarehouseAddr. These are
// opaque to the core — they are parsed only enough to split the packtype
// tag from the digest and are otherwise serialized verbatim, the way
// internal/formula's FormulaType is a plain validated string type in the
// teacher codebase.
package wareid

import "strings"

// Packtype is a short tag identifying a ware's pack format (e.g. "tar",
// "none"). It is compared against the literal "none" during plot
// validation and is otherwise opaque.
type Packtype string

// PacktypeNone is the sentinel packtype meaning "do not pack this output
// at the step boundary" — required for any GatherDirective inside a plot,
// since per-step packing is disabled and the plot packer always produces
// tar at the plot boundary (spec.md §3.3).
const PacktypeNone Packtype = "none"

// WarehouseAddr is an opaque URL-like string identifying a ware-content
// source. The core never interprets it beyond passing it to the external
// unpack collaborator.
type WarehouseAddr string

// WareID is a content hash in the form "<packtype>:<digest>". It is used
// as a map key and serialized verbatim on the wire.
type WareID string

// New builds a WareID from a packtype and digest, e.g. New("tar", d) ->
// "tar:<d>".
func New(packtype Packtype, digest string) WareID {
	return WareID(string(packtype) + ":" + digest)
}

// Packtype returns the packtype component of the WareID, or "" if the
// WareID has no ':' separator.
func (w WareID) Packtype() Packtype {
	pt, _, ok := w.split()
	if !ok {
		return ""
	}
	return pt
}

// Digest returns the digest component of the WareID, or "" if the WareID
// has no ':' separator.
func (w WareID) Digest() string {
	_, dg, ok := w.split()
	if !ok {
		return ""
	}
	return dg
}

// Valid reports whether the WareID has the "<packtype>:<digest>" shape
// and a non-empty packtype and digest.
func (w WareID) Valid() bool {
	pt, dg, ok := w.split()
	return ok && pt != "" && dg != ""
}

func (w WareID) split() (Packtype, string, bool) {
	s := string(w)
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", "", false
	}
	return Packtype(s[:i]), s[i+1:], true
}
