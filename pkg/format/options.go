package format

import "github.com/berrythewa/clipbridge/internal/types"

// Options controls formatting behavior
type Options struct {
	UseColors    bool
	UseIcons     bool
	ShowMetadata bool // Show content ids and notice ids
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		UseColors:    true,
		UseIcons:     true,
		ShowMetadata: true,
	}
}

// PlainOptions returns options for piping into other tools
func PlainOptions() Options {
	return Options{ShowMetadata: true}
}

// KindIcons maps content kinds to Unicode icons
var KindIcons = map[types.ContentKind]string{
	types.KindText: "📝",
	types.KindPNG:  "🖼️",
	types.KindBMP:  "🖼️",
	types.KindTIFF: "🖼️",
	types.KindJPEG: "🖼️",
}

// KindColors maps content kinds to colors
var KindColors = map[types.ContentKind]string{
	types.KindText: Cyan,
	types.KindPNG:  Magenta,
	types.KindBMP:  Magenta,
	types.KindTIFF: Magenta,
	types.KindJPEG: BrightMagenta,
}
