// Package enhance applies the subtle, non-AI polish used on framed portraits.
//
// The polish is three linear-factor adjustments applied in a fixed order:
// contrast, color saturation, then sharpness. A factor of 1 leaves the image
// unchanged for each step.
package enhance

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Default polish factors
const (
	DefaultContrast   = 1.08
	DefaultSaturation = 1.05
	DefaultSharpness  = 1.15

	// DefaultSharpenSigma approximates a 3x3 smoothing kernel
	DefaultSharpenSigma = 1.0
)

// Factors holds the enhancement factors
type Factors struct {
	Contrast     float64
	Saturation   float64
	Sharpness    float64
	SharpenSigma float64
}

// DefaultFactors returns the standard polish factors
func DefaultFactors() Factors {
	return Factors{
		Contrast:     DefaultContrast,
		Saturation:   DefaultSaturation,
		Sharpness:    DefaultSharpness,
		SharpenSigma: DefaultSharpenSigma,
	}
}

// Enhancer applies the fixed polish sequence
type Enhancer struct {
	factors Factors
}

// New creates an Enhancer with the default factors
func New() *Enhancer {
	return &Enhancer{factors: DefaultFactors()}
}

// NewWithFactors creates an Enhancer with custom factors
func NewWithFactors(f Factors) *Enhancer {
	if f.SharpenSigma <= 0 {
		f.SharpenSigma = DefaultSharpenSigma
	}
	return &Enhancer{factors: f}
}

// Factors returns the configured factors
func (e *Enhancer) Factors() Factors {
	return e.factors
}

// Polish applies contrast, saturation and sharpness in that order
func (e *Enhancer) Polish(img image.Image) *image.NRGBA {
	out := Contrast(img, e.factors.Contrast)
	out = Saturation(out, e.factors.Saturation)
	return Sharpness(out, e.factors.Sharpness, e.factors.SharpenSigma)
}

// Polish applies the default polish
func Polish(img image.Image) *image.NRGBA {
	return New().Polish(img)
}

// Contrast scales the distance of every channel from mid-gray by factor
func Contrast(img image.Image, factor float64) *image.NRGBA {
	return imaging.AdjustContrast(img, contrastPercentage(factor))
}

// contrastPercentage maps a slope to imaging's percentage scale. imaging uses
// slope v for v <= 1 and slope 1/(2-v) above, with v = 1 + percentage/100.
func contrastPercentage(factor float64) float64 {
	if factor <= 0 {
		return -100
	}
	if factor <= 1 {
		return 100 * (factor - 1)
	}
	return 100 * (1 - 1/factor)
}

// Saturation scales color saturation by factor
func Saturation(img image.Image, factor float64) *image.NRGBA {
	return imaging.AdjustSaturation(img, 100*(factor-1))
}

// Sharpness blends img with its unsharp-masked version so that the result is
// img + (factor-1) * (img - blur(img)). Factors are limited to [1, 2].
func Sharpness(img image.Image, factor, sigma float64) *image.NRGBA {
	amount := math.Min(math.Max(factor-1, 0), 1)
	if amount == 0 {
		return imaging.Clone(img)
	}
	sharp := imaging.Sharpen(img, sigma)
	return imaging.Overlay(img, sharp, img.Bounds().Min, amount)
}
