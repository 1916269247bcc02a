// Package facetype holds the face width vocabulary shared by templates and
// face analysis.
package facetype

import "strings"

// Canonical face widths as stored on templates.
const (
	Wide   = "wide"
	Narrow = "narrow"
	// Both marks templates that suit any face width.
	Both = "both"
)

// Display labels returned by the analysis workflow and shown to users.
const (
	WideLabel   = "宽脸"
	NarrowLabel = "窄脸"
)

var toDB = map[string]string{
	WideLabel:   Wide,
	NarrowLabel: Narrow,
	Wide:        Wide,
	Narrow:      Narrow,
}

// ToDB converts a display label (or an already canonical value) to the
// canonical face width. Empty and unknown input reports false.
func ToDB(label string) (string, bool) {
	v, ok := toDB[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

// Display converts a canonical face width to its display label. Only wide
// and narrow have one.
func Display(width string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(width)) {
	case Wide:
		return WideLabel, true
	case Narrow:
		return NarrowLabel, true
	default:
		return "", false
	}
}

// Opposite returns the other width for wide and narrow.
func Opposite(width string) (string, bool) {
	switch width {
	case Wide:
		return Narrow, true
	case Narrow:
		return Wide, true
	default:
		return "", false
	}
}

// Valid reports whether width is a canonical template face width.
func Valid(width string) bool {
	return width == Wide || width == Narrow || width == Both
}
