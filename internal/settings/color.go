package settings

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var ErrColor = errors.New("settings: unparsable color")

var namedColors = map[string]color.RGBA{
	"w":       {255, 255, 255, 255},
	"white":   {255, 255, 255, 255},
	"k":       {0, 0, 0, 255},
	"black":   {0, 0, 0, 255},
	"r":       {255, 0, 0, 255},
	"red":     {255, 0, 0, 255},
	"g":       {0, 128, 0, 255},
	"green":   {0, 128, 0, 255},
	"b":       {0, 0, 255, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
}

// ParseColor accepts a color name, "#rrggbb", or a gray level in [-1, 1]
// where 0 is mid gray and 1 is white.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if strings.HasPrefix(s, "#") && len(s) == 7 {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err == nil {
			return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= -1 && f <= 1 {
		l := uint8((f + 1) / 2 * 255)
		return color.RGBA{l, l, l, 255}, nil
	}
	return color.RGBA{}, fmt.Errorf("%w: %q", ErrColor, s)
}
