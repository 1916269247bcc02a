package domain

// GroupType identifies how many people a template shows.
type GroupType int

const (
	GroupTypeSingle GroupType = 1
	GroupTypeCouple GroupType = 2
	GroupTypeFamily GroupType = 3
)

// FaceWidthSensitive reports whether templates of this group come in wide and
// narrow variants.
func (g GroupType) FaceWidthSensitive() bool {
	return g == GroupTypeSingle || g == GroupTypeCouple
}

// Template is a face swap template image configured by operators.
type Template struct {
	ID             int64     `json:"id"`
	GroupType      GroupType `json:"group_type"`
	FaceType       string    `json:"face_type"`
	PairKey        string    `json:"pair_key,omitempty"`
	ImageURL       string    `json:"image_url"`
	MaskedImageURL string    `json:"masked_image_url,omitempty"`
	RegionCacheURL string    `json:"region_cache_url,omitempty"`
}

// SwapImageURL is the image sent to the swap workflow; the masked variant
// wins when one was prepared.
func (t *Template) SwapImageURL() string {
	if t.MaskedImageURL != "" {
		return t.MaskedImageURL
	}
	return t.ImageURL
}
