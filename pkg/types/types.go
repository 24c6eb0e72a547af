package types

import (
	"errors"
	"image"
)

var (
	// ErrDetectorUnavailable means the face detection backend could not be opened.
	// It is sticky for the lifetime of a locator.
	ErrDetectorUnavailable = errors.New("face detector unavailable")

	// ErrNoFaceFound means the detector ran but nothing passed the confidence threshold.
	ErrNoFaceFound = errors.New("no face found")

	// ErrInvalidImage is returned for empty, corrupt or zero-area images.
	ErrInvalidImage = errors.New("invalid image")
)

// BoundingBox is a face rectangle in source image pixels.
// It is not guaranteed to lie inside the image.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns Width*Height
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Center returns the exact center point of the box
func (b BoundingBox) Center() (float64, float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Candidate is a raw detection as reported by a backend, before selection.
type Candidate struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Area returns Width*Height
func (c Candidate) Area() float64 {
	return c.Width * c.Height
}

// CropRegion is a pixel rectangle with Right > Left and Bottom > Top.
type CropRegion struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width of the region
func (r CropRegion) Width() int {
	return r.Right - r.Left
}

// Height of the region
func (r CropRegion) Height() int {
	return r.Bottom - r.Top
}

// Rect converts the region to an image.Rectangle
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Aspect is a width:height rational.
type Aspect struct {
	Width  int
	Height int
}

// Portrait is the 4:5 head-and-shoulders framing used everywhere in this module.
var Portrait = Aspect{Width: 4, Height: 5}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Face is a single face reported by a vision model
type Face struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceReport contains the complete face location answer from the vision model
type FaceReport struct {
	Faces []Face `json:"faces"`
}
