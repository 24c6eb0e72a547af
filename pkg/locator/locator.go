// Package locator finds the dominant face in a photo.
//
// A FaceLocator opens its detection backend lazily on first use and caches the
// outcome for its whole lifetime. A backend that fails to open disables face
// detection permanently; callers then get no detection and frame heuristically.
package locator

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/headshot/pkg/types"
)

// DefaultMinConfidence is the detection confidence threshold
const DefaultMinConfidence = 0.5

// Kind selects a detection backend
type Kind string

const (
	KindPigo     Kind = "pigo"
	KindOllama   Kind = "ollama"
	KindLlamaCpp Kind = "llamacpp"
	KindNone     Kind = "none"
)

// ParseKind parses a backend name
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindPigo, KindOllama, KindLlamaCpp, KindNone:
		return k, nil
	case "":
		return KindNone, nil
	default:
		return "", fmt.Errorf("unknown detector backend: %s", name)
	}
}

// Backend runs face detection over a whole image. Candidate coordinates are
// pixels relative to img.Bounds().Min.
type Backend interface {
	Detect(ctx context.Context, img image.Image) ([]types.Candidate, error)
}

// Opener creates a backend. It is called at most once per FaceLocator.
type Opener func() (Backend, error)

// None is an Opener for a locator without a detector
func None() (Backend, error) {
	return nil, fmt.Errorf("no detector configured")
}

// FaceLocator returns the largest confident face of an image, if any
type FaceLocator struct {
	open          Opener
	minConfidence float64
	logger        *zap.Logger

	once    sync.Once
	backend Backend
	initErr error
}

// Option configures a FaceLocator
type Option func(*FaceLocator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *FaceLocator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMinConfidence sets the confidence threshold
func WithMinConfidence(threshold float64) Option {
	return func(l *FaceLocator) {
		l.minConfidence = threshold
	}
}

// New creates a FaceLocator. The backend is not opened until first use.
func New(open Opener, opts ...Option) *FaceLocator {
	if open == nil {
		open = None
	}
	l := &FaceLocator{
		open:          open,
		minConfidence: DefaultMinConfidence,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the largest face with sufficient confidence, or nil.
// It never fails: every detection problem degrades to nil.
func (l *FaceLocator) Locate(ctx context.Context, img image.Image) *types.BoundingBox {
	box, _ := l.Detect(ctx, img)
	return box
}

// Detect is Locate with the reason for a nil result: types.ErrDetectorUnavailable
// when the backend could not be opened, types.ErrNoFaceFound otherwise.
func (l *FaceLocator) Detect(ctx context.Context, img image.Image) (*types.BoundingBox, error) {
	backend, err := l.init()
	if err != nil {
		return nil, err
	}

	candidates, err := backend.Detect(ctx, img)
	if err != nil {
		l.logger.Debug("face detection failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", types.ErrNoFaceFound, err)
	}

	box := SelectLargest(candidates, l.minConfidence)
	if box == nil {
		l.logger.Debug("no face found",
			zap.Int("candidates", len(candidates)),
			zap.Float64("min_confidence", l.minConfidence))
		return nil, types.ErrNoFaceFound
	}

	l.logger.Debug("face located",
		zap.Int("x", box.X), zap.Int("y", box.Y),
		zap.Int("width", box.Width), zap.Int("height", box.Height))
	return box, nil
}

// Available opens the backend if needed and reports whether detection is possible
func (l *FaceLocator) Available() bool {
	_, err := l.init()
	return err == nil
}

// Err opens the backend if needed and returns the cached initialization error
func (l *FaceLocator) Err() error {
	_, err := l.init()
	return err
}

func (l *FaceLocator) init() (Backend, error) {
	l.once.Do(func() {
		backend, err := l.open()
		if err == nil && backend == nil {
			err = fmt.Errorf("opener returned no backend")
		}
		if err != nil {
			l.initErr = fmt.Errorf("%w: %v", types.ErrDetectorUnavailable, err)
			l.logger.Warn("face detection disabled", zap.Error(err))
			return
		}
		l.backend = backend
	})
	return l.backend, l.initErr
}

// SelectLargest drops candidates below threshold and returns the one with the
// largest area. Ties keep the first seen and zero-area candidates never win.
// Coordinates are truncated toward zero.
func SelectLargest(candidates []types.Candidate, threshold float64) *types.BoundingBox {
	var best *types.Candidate
	bestArea := 0.0
	for i := range candidates {
		c := &candidates[i]
		if c.Confidence < threshold {
			continue
		}
		if area := c.Area(); area > bestArea {
			best, bestArea = c, area
		}
	}
	if best == nil {
		return nil
	}
	return &types.BoundingBox{
		X:      int(best.X),
		Y:      int(best.Y),
		Width:  int(best.Width),
		Height: int(best.Height),
	}
}
