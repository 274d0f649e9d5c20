package utils

import (
	"fmt"
	"image/color"
	"regexp"

	"github.com/go-gl/mathgl/mgl32"
)

var colourRe = regexp.MustCompile(`^#[0-9A-Fa-f]{8}$`)

// ColourValidate accepts #rrggbbaa
func ColourValidate(c string) bool {
	return colourRe.MatchString(c)
}

func ColourParse(s string) (color.RGBA, error) {
	var c color.RGBA
	if !ColourValidate(s) {
		return c, fmt.Errorf("colour %q is not of the form #rrggbbaa", s)
	}
	_, err := fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	return c, err
}

// ColourVec returns the colour as normalised RGBA, or fallback if s is
// not a valid colour.
func ColourVec(s string, fallback mgl32.Vec4) mgl32.Vec4 {
	c, err := ColourParse(s)
	if err != nil {
		return fallback
	}
	return mgl32.Vec4{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}.Mul(1.0 / 255)
}
