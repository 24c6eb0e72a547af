package locator

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/headshot/pkg/types"
)

// PigoParams tunes the cascade run
type PigoParams struct {
	// MinSizeRatio is the smallest face as a fraction of the short image side
	MinSizeRatio float64
	MinSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// QualityScale maps detection quality to a 0..1 confidence
	QualityScale float32
}

// DefaultPigoParams returns parameters suited to portraits
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSizeRatio: 0.01,
		MinSize:      20,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		QualityScale: 100,
	}
}

// PigoBackend detects faces with a pixel intensity comparison cascade
type PigoBackend struct {
	classifier *pigo.Pigo
	params     PigoParams
}

// NewPigoBackend unpacks a facefinder cascade
func NewPigoBackend(cascade []byte, params PigoParams) (b *PigoBackend, err error) {
	if len(cascade) == 0 {
		return nil, fmt.Errorf("empty cascade")
	}
	if params.QualityScale <= 0 {
		params.QualityScale = DefaultPigoParams().QualityScale
	}

	// Unpack indexes into the buffer without bounds checks
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("corrupt cascade: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &PigoBackend{classifier: classifier, params: params}, nil
}

// OpenPigo returns an Opener that reads the cascade at path
func OpenPigo(path string, params PigoParams) Opener {
	return func() (Backend, error) {
		if path == "" {
			return nil, fmt.Errorf("no cascade file configured")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read cascade file: %w", err)
		}
		return NewPigoBackend(data, params)
	}
}

// Detect runs the cascade over the whole image
func (b *PigoBackend) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, types.ErrInvalidImage
	}

	short := min(cols, rows)
	minSize := max(b.params.MinSize, int(float64(short)*b.params.MinSizeRatio))
	if minSize > short {
		return nil, nil
	}

	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: b.params.ShiftFactor,
		ScaleFactor: b.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := b.classifier.RunCascade(cParams, 0.0)
	dets = b.classifier.ClusterDetections(dets, b.params.IoUThreshold)
	return convertDetections(dets, b.params.QualityScale), nil
}

// convertDetections turns centre/scale detections into boxes
func convertDetections(dets []pigo.Detection, qualityScale float32) []types.Candidate {
	out := make([]types.Candidate, 0, len(dets))
	for _, det := range dets {
		conf := det.Q / qualityScale
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		out = append(out, types.Candidate{
			X:          float64(det.Col) - float64(det.Scale)/2,
			Y:          float64(det.Row) - float64(det.Scale)/2,
			Width:      float64(det.Scale),
			Height:     float64(det.Scale),
			Confidence: float64(conf),
		})
	}
	return out
}
