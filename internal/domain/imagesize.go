package domain

// ImageSize is the resolution hint passed to image generation. The UI cycles
// through the tiers with a single action, so the zero-ish default is the
// lowest tier.
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"
)

// Next returns the following tier in round-robin order: 1K→2K→4K→1K.
func (s ImageSize) Next() ImageSize {
	switch s {
	case ImageSize1K:
		return ImageSize2K
	case ImageSize2K:
		return ImageSize4K
	default:
		return ImageSize1K
	}
}

// Valid reports whether s is one of the three known tiers.
func (s ImageSize) Valid() bool {
	switch s {
	case ImageSize1K, ImageSize2K, ImageSize4K:
		return true
	}
	return false
}
