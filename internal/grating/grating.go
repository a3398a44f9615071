// Package grating renders the stimulus texture: a vertical sine grating
// under a raised-cosine aperture. The texture is drawn once at orientation
// zero and rotated by the render driver for each interval.
package grating

import (
	"errors"
	"fmt"
	"math"
)

var ErrParams = errors.New("grating: invalid parameters")

// Params describe a texture. Cycles is the number of grating periods across
// the full texture width, FringeWidth the fraction of the aperture radius
// over which the mask ramps down.
type Params struct {
	Res         int
	Cycles      float64
	Contrast    float64
	FringeWidth float64
}

func (p Params) validate() error {
	if p.Res <= 0 || p.Cycles < 0 || p.Contrast < 0 || p.Contrast > 1 || p.FringeWidth < 0 || p.FringeWidth > 1 {
		return fmt.Errorf("%w: %+v", ErrParams, p)
	}
	return nil
}

// Generator fills premultiplied RGBA pixels, Res*Res*4 bytes, row major.
type Generator interface {
	Generate(p Params) ([]byte, error)
	Name() string
	Close()
}

// Luminance returns the grating value in [0, 1] at column x.
func Luminance(x int, p Params) float64 {
	u := (float64(x) + 0.5) / float64(p.Res)
	return 0.5 + 0.5*p.Contrast*math.Sin(2*math.Pi*p.Cycles*u)
}

// Mask returns the aperture opacity at pixel (x, y).
func Mask(x, y int, p Params) float64 {
	half := float64(p.Res) / 2
	dx := (float64(x) + 0.5 - half) / half
	dy := (float64(y) + 0.5 - half) / half
	return raisedCos(math.Hypot(dx, dy), p.FringeWidth)
}

func raisedCos(r, fringe float64) float64 {
	inner := 1 - fringe
	switch {
	case r >= 1:
		return 0
	case r <= inner:
		return 1
	}
	return 0.5 * (1 + math.Cos(math.Pi*(r-inner)/fringe))
}

func putPixel(dst []byte, i int, lum, alpha float64) {
	a := alpha * 255
	v := lum * a
	dst[i] = uint8(v + 0.5)
	dst[i+1] = uint8(v + 0.5)
	dst[i+2] = uint8(v + 0.5)
	dst[i+3] = uint8(a + 0.5)
}

// New returns the OpenCL generator when requested and available, the CPU
// one otherwise. The error reports why OpenCL was not used; the returned
// generator is always usable.
func New(useOpenCL bool, workers int) (Generator, error) {
	if !useOpenCL {
		return NewCPU(workers), nil
	}
	g, err := newOpenCL()
	if err != nil {
		return NewCPU(workers), err
	}
	return g, nil
}
