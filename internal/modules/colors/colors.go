// Package colors assigns each country a stable display color so it renders
// with the same hue in every chart and on the galaxy map, across requests
// and across restarts.
package colors

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"

	"github.com/rhaume/starledger/internal/domain"
)

// Fixed saturation and value keep every assigned hue readable on the dark
// plot background.
const (
	saturation = 0.65
	brightness = 0.95
)

// ForCountry returns an "rgba(r,g,b,a)" string for a country key.
// The hue is derived from a hash of the key, so the mapping needs no
// state and never changes for a given save. Alpha is clamped to [0, 1].
func ForCountry(key string, alpha float64) string {
	alpha = math.Min(alpha, 1)
	alpha = math.Max(alpha, 0)

	if key == domain.Unclaimed {
		return fmt.Sprintf("rgba(150,150,150,%s)", formatAlpha(alpha))
	}

	h := fnv.New32a()
	h.Write([]byte(key))
	hue := float64(h.Sum32()%3600) / 10.0

	r, g, b := hsvToRGB(hue, saturation, brightness)
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b, formatAlpha(alpha))
}

func formatAlpha(alpha float64) string {
	return strconv.FormatFloat(alpha, 'g', -1, 64)
}

// hsvToRGB converts hue [0,360), saturation and value [0,1] to 8-bit RGB.
func hsvToRGB(h, s, v float64) (int, int, int) {
	c := v * s
	hp := h / 60.0
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := v - c
	return int(math.Round((r + m) * 255)),
		int(math.Round((g + m) * 255)),
		int(math.Round((b + m) * 255))
}
