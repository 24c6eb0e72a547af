// Package headshot turns an arbitrary portrait photo into a consistent 4:5
// head-and-shoulders image.
//
// The pipeline decodes the photo, locates the largest face (best effort),
// crops and resizes around it, applies a subtle polish and encodes the result
// losslessly. Without a usable face it falls back to a deterministic
// heuristic crop, so every valid photo produces an output.
//
// Basic usage:
//
//	p := headshot.New(headshot.WithLocator(
//		locator.New(locator.OpenPigo("facefinder", locator.DefaultPigoParams())),
//	))
//	png, err := p.Process(ctx, raw)
//
// Components:
//
//  1. Locator (pkg/locator): lazy face detection with pigo or a vision model
//  2. Framing (pkg/framing): face-aware and fallback cropping
//  3. Enhance (pkg/enhance): contrast, saturation and sharpness polish
//  4. Codec (pkg/codec): decode JPEG/PNG/WebP, encode PNG or lossless WebP
package headshot

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/headshot/internal/config"
	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/pkg/codec"
	"github.com/menta2k/headshot/pkg/enhance"
	"github.com/menta2k/headshot/pkg/framing"
	"github.com/menta2k/headshot/pkg/locator"
	"github.com/menta2k/headshot/pkg/types"
)

// Version of the headshot library
const Version = "1.0.0"

// Pipeline runs decode, locate, frame, polish and encode
type Pipeline struct {
	locator  *locator.FaceLocator
	engine   *framing.Engine
	enhancer *enhance.Enhancer
	codec    *codec.Codec
	format   codec.Format
	polish   bool
	logger   *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLocator sets the face locator
func WithLocator(l *locator.FaceLocator) Option {
	return func(p *Pipeline) { p.locator = l }
}

// WithFraming sets the framing engine
func WithFraming(e *framing.Engine) Option {
	return func(p *Pipeline) { p.engine = e }
}

// WithEnhancer sets the enhancer
func WithEnhancer(e *enhance.Enhancer) Option {
	return func(p *Pipeline) { p.enhancer = e }
}

// WithCodec sets the codec
func WithCodec(c *codec.Codec) Option {
	return func(p *Pipeline) { p.codec = c }
}

// WithFormat sets the output encoding
func WithFormat(f codec.Format) Option {
	return func(p *Pipeline) { p.format = f }
}

// WithPolish enables or disables the enhancement step
func WithPolish(enabled bool) Option {
	return func(p *Pipeline) { p.polish = enabled }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline. Without WithLocator no face detection is attempted.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:   framing.New(),
		enhancer: enhance.New(),
		codec:    codec.New(),
		format:   codec.FormatPNG,
		polish:   true,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.locator == nil {
		p.locator = locator.New(locator.None, locator.WithLogger(p.logger))
	}
	return p
}

// NewFromConfig builds a Pipeline from application configuration
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kind, err := locator.ParseKind(cfg.Detector.Backend)
	if err != nil {
		return nil, err
	}
	filter, err := framing.FilterByName(cfg.Framing.Filter)
	if err != nil {
		return nil, err
	}
	format, err := codec.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	vision := locator.DefaultVisionOptions()
	if cfg.Detector.MaxDim > 0 {
		vision.MaxDim = cfg.Detector.MaxDim
	}
	faceLocator := locator.NewFromConfig(locator.Config{
		Kind:          kind,
		CascadePath:   cfg.Detector.CascadePath,
		ServerURL:     cfg.Detector.ServerURL,
		Model:         cfg.Detector.Model,
		MinConfidence: cfg.Detector.MinConfidence,
		Vision:        vision,
	}, locator.WithLogger(logger.Named("locator")))

	return New(
		WithLocator(faceLocator),
		WithFraming(framing.NewWithConfig(framing.Config{
			OutputSize: cfg.Framing.OutputSize,
			Aspect:     types.Portrait,
			Filter:     filter,
		})),
		WithEnhancer(enhance.NewWithFactors(enhance.Factors{
			Contrast:     cfg.Enhance.Contrast,
			Saturation:   cfg.Enhance.Saturation,
			Sharpness:    cfg.Enhance.Sharpness,
			SharpenSigma: cfg.Enhance.SharpenSigma,
		})),
		WithFormat(format),
		WithPolish(cfg.Enhance.Enabled),
		WithLogger(logger),
	), nil
}

// Result holds every stage of a pipeline run
type Result struct {
	RequestID string
	Source    codec.ImageInfo

	// Face is nil when no face was used for framing
	Face    *types.BoundingBox
	Framing framing.Result

	// Cropped is the framed image before polish; Polished equals Cropped when polish is off
	Cropped  *image.NRGBA
	Polished *image.NRGBA
}

// Process decodes raw, frames and polishes it and returns the encoded output.
// Only undecodable or empty input fails, with types.ErrInvalidImage.
func (p *Pipeline) Process(ctx context.Context, raw []byte) ([]byte, error) {
	requestID := uuid.NewString()

	img, err := p.codec.Decode(raw)
	if err != nil {
		return nil, logging.NewOperationError("headshot.decode", requestID, err)
	}

	res, err := p.run(ctx, requestID, img)
	if err != nil {
		return nil, err
	}

	out, err := p.codec.EncodeAs(res.Polished, p.format)
	if err != nil {
		return nil, logging.NewOperationError("headshot.encode", requestID, err)
	}
	return out, nil
}

// ProcessImage frames and polishes an already decoded image
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*Result, error) {
	return p.run(ctx, uuid.NewString(), img)
}

func (p *Pipeline) run(ctx context.Context, requestID string, img image.Image) (*Result, error) {
	log := logging.WithOperation(p.logger, "headshot.process", requestID)

	if err := p.codec.Validate(img); err != nil {
		return nil, logging.NewOperationError("headshot.validate", requestID, err)
	}
	res := &Result{RequestID: requestID, Source: codec.Info(img)}

	face, err := p.locator.Detect(ctx, img)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrDetectorUnavailable):
		log.Debug("framing without face detection")
	default:
		log.Debug("no usable face, using fallback framing", zap.Error(err))
	}

	framed, err := p.engine.Frame(img, face)
	if err != nil {
		return nil, logging.NewOperationError("headshot.frame", requestID, err)
	}
	if framed.FaceBased {
		res.Face = face
	}
	res.Framing = framed
	res.Cropped = framed.Image
	res.Polished = framed.Image
	if p.polish {
		res.Polished = p.enhancer.Polish(framed.Image)
	}

	final := framed.Final()
	log.Info("framed portrait",
		zap.Int("source_width", res.Source.Width),
		zap.Int("source_height", res.Source.Height),
		zap.Bool("face_based", framed.FaceBased),
		zap.String("crop", fmt.Sprintf("%d,%d,%d,%d", final.Left, final.Top, final.Right, final.Bottom)),
	)
	return res, nil
}

// Decode decodes raw image bytes with the pipeline's codec
func (p *Pipeline) Decode(raw []byte) (*image.NRGBA, error) {
	return p.codec.Decode(raw)
}

// Encode encodes img with the pipeline's output format
func (p *Pipeline) Encode(img image.Image) ([]byte, error) {
	return p.codec.EncodeAs(img, p.format)
}

// Format returns the output format
func (p *Pipeline) Format() codec.Format {
	return p.format
}

// Locator returns the face locator
func (p *Pipeline) Locator() *locator.FaceLocator {
	return p.locator
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
