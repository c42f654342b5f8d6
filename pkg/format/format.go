package format

import (
	"fmt"
	"strings"

	"github.com/berrythewa/clipbridge/internal/storage"
)

// Formatter renders cached payload entries for the terminal
type Formatter struct {
	options Options
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{
		options: opts,
	}
}

// FormatEntry formats one cache entry on a single line
func (f *Formatter) FormatEntry(e *storage.Entry) string {
	if e == nil {
		return ColorizeIf("No entry", Gray, f.options.UseColors)
	}

	var parts []string
	if f.options.UseIcons {
		if icon, ok := KindIcons[e.Kind]; ok {
			parts = append(parts, icon)
		}
	}
	kind := fmt.Sprintf("%-4s", e.Kind)
	parts = append(parts, ColorizeIf(BoldIf(kind, f.options.UseColors), KindColors[e.Kind], f.options.UseColors))
	parts = append(parts, fmt.Sprintf("%10s", FormatSize(e.Size)))
	parts = append(parts, DimIf(FormatRelativeTime(e.Created), f.options.UseColors))

	if f.options.ShowMetadata {
		parts = append(parts, DimIf(TruncateText(e.CID, 24), f.options.UseColors))
		parts = append(parts, DimIf("notice "+TruncateText(e.NoticeID, 13), f.options.UseColors))
	}
	return strings.Join(parts, "  ")
}

// FormatEntryList formats multiple entries under a count header
func (f *Formatter) FormatEntryList(entries []*storage.Entry) string {
	if len(entries) == 0 {
		return ColorizeIf("Cache is empty", Gray, f.options.UseColors)
	}

	lines := []string{f.formatListHeader(len(entries)), CreateSeparator(f.options)}
	for _, e := range entries {
		lines = append(lines, f.FormatEntry(e))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) formatListHeader(count int) string {
	noun := "entries"
	if count == 1 {
		noun = "entry"
	}
	return BoldIf(fmt.Sprintf("%d cached %s", count, noun), f.options.UseColors)
}
