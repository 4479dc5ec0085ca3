// Package colorutil provides shared color utilities for map overlays.
package colorutil

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var ErrBadHex = errors.New("invalid hex color")

// Common overlay colors.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ParseHex parses "#rrggbb" or "#rgb" (the leading # is optional).
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Hex formats c as "#rrggbb", ignoring alpha.
func Hex(c color.Color) string {
	r, g, b := RGB8(c)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// RGB8 returns the 8-bit red, green and blue channels of c.
func RGB8(c color.Color) (r, g, b uint8) {
	r32, g32, b32, _ := c.RGBA()
	return uint8(r32 >> 8), uint8(g32 >> 8), uint8(b32 >> 8)
}

// IsWhite reports whether every channel of c is saturated, as in the white
// padding photogrammetry tools add around an orthomap.
func IsWhite(c color.Color) bool {
	r, g, b := RGB8(c)
	return int(r)+int(g)+int(b) >= 3*255
}
