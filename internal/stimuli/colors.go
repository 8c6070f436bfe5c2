package stimuli

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

const (
	Black = "#000000"
	White = "#FFFFFF"

	// MinDistance is the RGB distance below which two colours count as too similar.
	MinDistance = 100.0
)

type RGB struct {
	R, G, B uint8
}

// ParseHex accepts "#RRGGBB" or "#RGB", with or without the leading '#'.
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, errors.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, errors.Errorf("invalid hex colour %q", s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Distance is the Euclidean distance between a and b in RGB space.
func Distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func (c RGB) Luminance() float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// IsLight reports whether black text reads better than white on c.
func (c RGB) IsLight() bool {
	return c.Luminance() > 128
}

// SafeTextColors filters palette down to entries at least MinDistance away from background.
func SafeTextColors(background RGB, palette []string) []string {
	var safe []string
	for _, hex := range palette {
		col, err := ParseHex(hex)
		if err != nil {
			continue
		}
		if Distance(col, background) >= MinDistance {
			safe = append(safe, hex)
		}
	}
	return safe
}

// PickTextColor returns a palette colour distinguishable from background,
// or black/white by background luminance when no palette colour qualifies.
func (c *Catalog) PickTextColor(background string) (string, error) {
	bg, err := ParseHex(background)
	if err != nil {
		return "", err
	}
	safe := SafeTextColors(bg, c.Palette())
	if len(safe) == 0 {
		if bg.IsLight() {
			return Black, nil
		}
		return White, nil
	}
	return safe[c.rng.IntN(len(safe))], nil
}

// TrialColors returns the text and background colours for a trial in block.
func (c *Catalog) TrialColors(block domain.BlockType) (text, background string, err error) {
	switch block {
	case domain.BlockColoredBG:
		if len(c.t.Backgrounds) == 0 {
			return Black, White, nil
		}
		background = c.t.Backgrounds[c.rng.IntN(len(c.t.Backgrounds))]
		text, err = c.PickTextColor(background)
		return text, background, err
	case domain.BlockColor:
		palette := c.Palette()
		return palette[c.rng.IntN(len(palette))], White, nil
	default:
		return Black, White, nil
	}
}
