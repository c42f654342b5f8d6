package types

import (
	"fmt"
	"strings"
)

// ContentKind is a normalized clipboard payload format, independent of the
// identifiers the windowing system uses for it.
type ContentKind int

// Declaration order is negotiation priority: when a peer offers several
// kinds, the earliest one listed here wins.
const (
	KindText ContentKind = iota
	KindPNG
	KindBMP
	KindTIFF
	KindJPEG

	// KindNone means "no data". It also bounds iteration over the real kinds.
	KindNone
)

var kindNames = [...]string{
	KindText: "text",
	KindPNG:  "png",
	KindBMP:  "bmp",
	KindTIFF: "tiff",
	KindJPEG: "jpeg",
	KindNone: "none",
}

// kindTargets are the selection target names each kind is advertised under.
var kindTargets = [...]string{
	KindText: "UTF8_STRING",
	KindPNG:  "image/png",
	KindBMP:  "image/bmp",
	KindTIFF: "image/tiff",
	KindJPEG: "image/jpeg",
}

// Kinds returns every real kind in priority order.
func Kinds() []ContentKind {
	kinds := make([]ContentKind, 0, KindNone)
	for k := KindText; k < KindNone; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is a real, transferable kind.
func (k ContentKind) Valid() bool {
	return k >= KindText && k < KindNone
}

// TargetName returns the selection target name for k, or "" for KindNone.
func (k ContentKind) TargetName() string {
	if !k.Valid() {
		return ""
	}
	return kindTargets[k]
}

func (k ContentKind) String() string {
	if k < KindText || k > KindNone {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a kind name back to its ContentKind. Unknown names yield
// KindNone and an error.
func ParseKind(s string) (ContentKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := KindText; k <= KindNone; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown content kind %q", s)
}

// MarshalText encodes the kind by name so configs and wire messages stay readable.
func (k ContentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *ContentKind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
