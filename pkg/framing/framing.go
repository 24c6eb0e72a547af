package framing

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/headshot/pkg/types"
)

// Head-and-shoulders expansion of a detected face box. These are empirical
// values and are kept exactly as tuned.
const (
	FaceWidthScale  = 2.2
	FaceHeightScale = 3.0

	// FaceHeadroom is the share of the expanded height placed above the face center.
	FaceHeadroom = 0.35

	// HeadroomDivisor places vertical trims at 1/3 of the slack rather than the middle.
	HeadroomDivisor = 3

	DefaultOutputSize = 1024
)

// Engine crops portraits into a fixed aspect head-and-shoulders framing
type Engine struct {
	config Config
}

// Config holds configuration for the framing engine
type Config struct {
	OutputSize int
	Aspect     types.Aspect
	Filter     imaging.ResampleFilter
}

// DefaultConfig returns the 1024x1280 portrait configuration
func DefaultConfig() Config {
	return Config{
		OutputSize: DefaultOutputSize,
		Aspect:     types.Portrait,
		Filter:     imaging.CatmullRom,
	}
}

// New creates a new Engine with default configuration
func New() *Engine {
	return &Engine{config: DefaultConfig()}
}

// NewWithConfig creates a new Engine with custom configuration.
// A zero OutputSize or Aspect falls back to the default; a zero Filter is
// imaging.NearestNeighbor.
func NewWithConfig(config Config) *Engine {
	def := DefaultConfig()
	if config.OutputSize <= 0 {
		config.OutputSize = def.OutputSize
	}
	if config.Aspect.Width <= 0 || config.Aspect.Height <= 0 {
		config.Aspect = def.Aspect
	}
	return &Engine{config: config}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Result contains the result of a framing operation
type Result struct {
	Image *image.NRGBA

	// Region is the first crop, in source image coordinates.
	Region types.CropRegion

	// Trim is the aspect normalization crop, relative to Region.
	Trim types.CropRegion

	FaceBased bool
}

// Final returns the effective crop in source image coordinates
func (r Result) Final() types.CropRegion {
	return types.CropRegion{
		Left:   r.Region.Left + r.Trim.Left,
		Top:    r.Region.Top + r.Trim.Top,
		Right:  r.Region.Left + r.Trim.Right,
		Bottom: r.Region.Top + r.Trim.Bottom,
	}
}

// Plan computes the crop regions for an image of the given size without touching pixels
func (e *Engine) Plan(width, height int, face *types.BoundingBox) (Result, error) {
	if width <= 0 || height <= 0 {
		return Result{}, fmt.Errorf("framing %dx%d image: %w", width, height, types.ErrInvalidImage)
	}

	var res Result
	if face != nil && face.Width > 0 && face.Height > 0 {
		res.Region = PlanFace(width, height, *face)
		res.Trim = NormalizeAspect(res.Region.Width(), res.Region.Height(), e.config.Aspect)
		res.FaceBased = true
	} else {
		res.Region = PlanFallback(width, height, e.config.Aspect)
		res.Trim = types.CropRegion{Right: res.Region.Width(), Bottom: res.Region.Height()}
	}
	return res, nil
}

// Frame crops img around face (or heuristically when face is nil) and resizes
// the result to the configured output size.
func (e *Engine) Frame(img image.Image, face *types.BoundingBox) (Result, error) {
	bounds := img.Bounds()
	res, err := e.Plan(bounds.Dx(), bounds.Dy(), face)
	if err != nil {
		return Result{}, err
	}

	// Cropping twice and cropping once to the composed rectangle select the same pixels.
	cropped := imaging.Crop(img, res.Final().Rect().Add(bounds.Min))

	w, h := OutputDimensions(e.config.OutputSize, e.config.Aspect)
	res.Image = imaging.Resize(cropped, w, h, e.config.Filter)
	return res, nil
}

// OutputDimensions returns (size, round(size / aspect))
func OutputDimensions(size int, aspect types.Aspect) (int, int) {
	return size, int(math.Round(float64(size) * float64(aspect.Height) / float64(aspect.Width)))
}

// PlanFallback returns the heuristic crop used when no face is known: the
// largest aspect-correct rectangle, centered horizontally and biased to the
// top third vertically.
func PlanFallback(width, height int, aspect types.Aspect) types.CropRegion {
	newW := maxInt(1, minInt(width, height*aspect.Width/aspect.Height))
	newH := maxInt(1, minInt(height, newW*aspect.Height/aspect.Width))

	left := (width - newW) / 2
	top := maxInt(0, (height-newH)/HeadroomDivisor)

	return types.CropRegion{Left: left, Top: top, Right: left + newW, Bottom: top + newH}
}

// PlanFace expands a face box into a head-and-shoulders region clamped to the image
func PlanFace(width, height int, face types.BoundingBox) types.CropRegion {
	cx, cy := face.Center()
	boxW := float64(face.Width) * FaceWidthScale
	boxH := float64(face.Height) * FaceHeightScale

	left := int(math.Max(0, cx-boxW/2))
	top := int(math.Max(0, cy-boxH*FaceHeadroom))
	right := int(math.Min(float64(width), cx+boxW/2))
	bottom := int(math.Min(float64(height), float64(top)+boxH))

	return clampRegion(types.CropRegion{Left: left, Top: top, Right: right, Bottom: bottom}, width, height)
}

// NormalizeAspect returns the sub-rectangle of a cropW x cropH region that has
// the target aspect. Too wide crops are trimmed symmetrically; too tall (or
// exact) crops keep a third of the vertical slack above.
func NormalizeAspect(cropW, cropH int, aspect types.Aspect) types.CropRegion {
	// cropW/cropH > aspect.Width/aspect.Height, without floats
	if cropW*aspect.Height > cropH*aspect.Width {
		newW := maxInt(1, cropH*aspect.Width/aspect.Height)
		left := (cropW - newW) / 2
		return types.CropRegion{Left: left, Top: 0, Right: left + newW, Bottom: cropH}
	}

	newH := maxInt(1, minInt(cropH, cropW*aspect.Height/aspect.Width))
	top := maxInt(0, (cropH-newH)/HeadroomDivisor)
	return types.CropRegion{Left: 0, Top: top, Right: cropW, Bottom: top + newH}
}

// clampRegion keeps the region inside the image with at least one pixel per side
func clampRegion(r types.CropRegion, width, height int) types.CropRegion {
	r.Left = clampInt(r.Left, 0, width-1)
	r.Top = clampInt(r.Top, 0, height-1)
	r.Right = clampInt(r.Right, r.Left+1, width)
	r.Bottom = clampInt(r.Bottom, r.Top+1, height)
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
