package media

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/pkg/logger"
)

const (
	sampleSize      = 50
	saturationBoost = 2.0
	darkFloor       = 50
	darkLift        = 60
)

// FallbackPalette is used whenever extraction fails
func FallbackPalette() []string {
	return []string{constants.DefaultPalette[0], constants.DefaultPalette[1]}
}

// PaletteFromFile extracts a two-colour palette from an image on disk, falling
// back to the default palette on any failure
func PaletteFromFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		logger.Get().Warn("Colour extraction failed", zap.String("path", path), zap.Error(err))
		return FallbackPalette()
	}
	defer f.Close()

	palette, err := ExtractPalette(f)
	if err != nil {
		logger.Get().Warn("Colour extraction failed", zap.String("path", path), zap.Error(err))
		return FallbackPalette()
	}
	return palette
}

type bucket struct {
	count   int
	r, g, b int
}

// ExtractPalette returns the two most frequent distinct colours of a JPEG or PNG
// after shrinking it and boosting saturation. Near-black colours are lifted.
func ExtractPalette(r io.Reader) ([]string, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	small := imaging.Resize(img, sampleSize, sampleSize, imaging.Box)

	buckets := make(map[int]*bucket)
	bounds := small.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := small.NRGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			rr, gg, bb := saturate(int(c.R), int(c.G), int(c.B))
			// 3 bits per channel
			key := (rr>>5)<<6 | (gg>>5)<<3 | (bb >> 5)
			bk, ok := buckets[key]
			if !ok {
				bk = &bucket{}
				buckets[key] = bk
			}
			bk.count++
			bk.r += rr
			bk.g += gg
			bk.b += bb
		}
	}
	if len(buckets) < 2 {
		return nil, fmt.Errorf("image has fewer than two distinct colours")
	}

	ranked := make([]int, 0, len(buckets))
	for key := range buckets {
		ranked = append(ranked, key)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := buckets[ranked[i]], buckets[ranked[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return ranked[i] < ranked[j]
	})

	palette := make([]string, 0, 2)
	for _, key := range ranked {
		bk := buckets[key]
		hex := toHex(bk.r/bk.count, bk.g/bk.count, bk.b/bk.count)
		if len(palette) == 1 && palette[0] == hex {
			continue
		}
		palette = append(palette, hex)
		if len(palette) == 2 {
			break
		}
	}
	if len(palette) < 2 {
		return nil, fmt.Errorf("image has fewer than two distinct colours")
	}
	return palette, nil
}

// saturate pushes each channel away from the pixel's luma
func saturate(r, g, b int) (int, int, int) {
	luma := (299*r + 587*g + 114*b) / 1000
	push := func(c int) int {
		return clamp(luma + int(float64(c-luma)*saturationBoost))
	}
	return push(r), push(g), push(b)
}

func toHex(r, g, b int) string {
	if r+g+b < darkFloor {
		r, g, b = clamp(r+darkLift), clamp(g+darkLift), clamp(b+darkLift)
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func clamp(c int) int {
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return c
}
