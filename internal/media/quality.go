package media

import (
	"fmt"
	"sort"

	"mediafetch/internal/models"
)

const (
	minQualityHeight     = 144
	defaultQualityHeight = 720
)

// QualityLabel returns the human tier name for a pixel height.
func QualityLabel(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1440:
		return "2K"
	case height >= 1080:
		return "Full HD"
	case height >= 720:
		return "HD"
	default:
		return fmt.Sprintf("%dp", height)
	}
}

// ExtractQualities turns raw stream heights into distinct tiers, tallest
// first. Heights below 144 are ignored. When nothing usable remains a single
// 720p tier is returned so callers always have one option.
func ExtractQualities(heights []int) []models.Quality {
	seen := make(map[int]struct{}, len(heights))
	distinct := make([]int, 0, len(heights))
	for _, h := range heights {
		if h < minQualityHeight {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		distinct = append(distinct, h)
	}

	if len(distinct) == 0 {
		return []models.Quality{{Height: defaultQualityHeight, Label: QualityLabel(defaultQualityHeight)}}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(distinct)))
	out := make([]models.Quality, 0, len(distinct))
	for _, h := range distinct {
		out = append(out, models.Quality{Height: h, Label: QualityLabel(h)})
	}
	return out
}
