package locator

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/headshot/pkg/client"
	"github.com/menta2k/headshot/pkg/processing"
	"github.com/menta2k/headshot/pkg/types"
)

// FacePrompt asks a vision model for face boxes
const FacePrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- One entry per visible human face. Return {"faces": []} if there is none.
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box should tightly include forehead to chin and ear to ear.
- confidence is your certainty that the box is a real human face.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionOptions configures a VisionBackend
type VisionOptions struct {
	Prompt string
	// MaxDim bounds the longest side of the image sent to the model
	MaxDim  int
	Quality int
}

// DefaultVisionOptions returns the standard vision settings
func DefaultVisionOptions() VisionOptions {
	return VisionOptions{Prompt: FacePrompt, MaxDim: 768, Quality: 90}
}

// VisionBackend locates faces by asking a multimodal model
type VisionBackend struct {
	client    client.VisionClient
	model     string
	opts      VisionOptions
	processor *processing.Processor
}

// NewVisionBackend creates a backend over an existing client
func NewVisionBackend(c client.VisionClient, model string, opts VisionOptions) *VisionBackend {
	def := DefaultVisionOptions()
	if opts.Prompt == "" {
		opts.Prompt = def.Prompt
	}
	if opts.MaxDim <= 0 {
		opts.MaxDim = def.MaxDim
	}
	if opts.Quality <= 0 {
		opts.Quality = def.Quality
	}
	return &VisionBackend{
		client:    c,
		model:     model,
		opts:      opts,
		processor: processing.NewProcessor(),
	}
}

// Detect sends a downscaled copy of img to the model and maps the normalized
// answer back to source pixels
func (b *VisionBackend) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, types.ErrInvalidImage
	}

	imgB64, err := b.processor.PrepareImageForModel(img, b.opts.MaxDim, b.opts.Quality)
	if err != nil {
		return nil, err
	}

	report, err := b.client.LocateFaces(ctx, b.model, b.opts.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	out := make([]types.Candidate, 0, len(report.Faces))
	for _, f := range report.Faces {
		x0, y0 := clamp01(f.Box.X), clamp01(f.Box.Y)
		x1, y1 := clamp01(f.Box.X+f.Box.W), clamp01(f.Box.Y+f.Box.H)
		out = append(out, types.Candidate{
			X:          x0 * w,
			Y:          y0 * h,
			Width:      (x1 - x0) * w,
			Height:     (y1 - y0) * h,
			Confidence: f.Confidence,
		})
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
