package locator

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/menta2k/headshot/pkg/types"
)

type fakeBackend struct {
	candidates []types.Candidate
	err        error
	calls      atomic.Int32
}

func (f *fakeBackend) Detect(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	f.calls.Add(1)
	return f.candidates, f.err
}

func testImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 100, 100))
}

func TestSelectLargest(t *testing.T) {
	tests := []struct {
		name       string
		candidates []types.Candidate
		want       *types.BoundingBox
	}{
		{
			name: "empty",
			want: nil,
		},
		{
			name: "largest wins",
			candidates: []types.Candidate{
				{X: 0, Y: 0, Width: 10, Height: 10, Confidence: 0.9},
				{X: 5, Y: 5, Width: 30, Height: 20, Confidence: 0.6},
				{X: 1, Y: 1, Width: 20, Height: 20, Confidence: 0.99},
			},
			want: &types.BoundingBox{X: 5, Y: 5, Width: 30, Height: 20},
		},
		{
			name: "below threshold ignored",
			candidates: []types.Candidate{
				{X: 0, Y: 0, Width: 80, Height: 80, Confidence: 0.49},
				{X: 2, Y: 3, Width: 10, Height: 10, Confidence: 0.5},
			},
			want: &types.BoundingBox{X: 2, Y: 3, Width: 10, Height: 10},
		},
		{
			name: "tie keeps first",
			candidates: []types.Candidate{
				{X: 1, Y: 1, Width: 10, Height: 20, Confidence: 0.7},
				{X: 9, Y: 9, Width: 20, Height: 10, Confidence: 0.9},
			},
			want: &types.BoundingBox{X: 1, Y: 1, Width: 10, Height: 20},
		},
		{
			name: "zero area never chosen",
			candidates: []types.Candidate{
				{X: 1, Y: 1, Width: 0, Height: 20, Confidence: 0.9},
			},
			want: nil,
		},
		{
			name: "coordinates truncated",
			candidates: []types.Candidate{
				{X: 10.9, Y: -3.7, Width: 40.99, Height: 50.5, Confidence: 0.8},
			},
			want: &types.BoundingBox{X: 10, Y: -3, Width: 40, Height: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectLargest(tt.candidates, DefaultMinConfidence))
		})
	}
}

func TestLocate(t *testing.T) {
	backend := &fakeBackend{candidates: []types.Candidate{
		{X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.95},
	}}
	l := New(func() (Backend, error) { return backend, nil })

	box := l.Locate(context.Background(), testImage())
	require.NotNil(t, box)
	assert.Equal(t, types.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}, *box)
	assert.True(t, l.Available())
	assert.NoError(t, l.Err())
}

func TestLocateNoFace(t *testing.T) {
	l := New(func() (Backend, error) { return &fakeBackend{}, nil })

	box, err := l.Detect(context.Background(), testImage())
	assert.Nil(t, box)
	assert.ErrorIs(t, err, types.ErrNoFaceFound)
	assert.True(t, l.Available())
}

func TestLocateBackendErrorIsNotSticky(t *testing.T) {
	backend := &fakeBackend{err: errors.New("model timeout")}
	l := New(func() (Backend, error) { return backend, nil })

	_, err := l.Detect(context.Background(), testImage())
	assert.ErrorIs(t, err, types.ErrNoFaceFound)

	backend.err = nil
	backend.candidates = []types.Candidate{{Width: 5, Height: 5, Confidence: 1}}
	assert.NotNil(t, l.Locate(context.Background(), testImage()))
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestOpenFailureIsSticky(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var opens atomic.Int32
	l := New(func() (Backend, error) {
		opens.Add(1)
		return nil, errors.New("model file missing")
	}, WithLogger(zap.New(core)))

	for i := 0; i < 5; i++ {
		assert.Nil(t, l.Locate(context.Background(), testImage()))
	}
	assert.False(t, l.Available())
	assert.ErrorIs(t, l.Err(), types.ErrDetectorUnavailable)
	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, 1, logs.FilterMessage("face detection disabled").Len())
}

func TestConcurrentFirstUseOpensOnce(t *testing.T) {
	var opens atomic.Int32
	backend := &fakeBackend{candidates: []types.Candidate{{Width: 10, Height: 10, Confidence: 1}}}
	l := New(func() (Backend, error) {
		opens.Add(1)
		return backend, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, l.Locate(context.Background(), testImage()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, int32(16), backend.calls.Load())
}

func TestNilOpenerIsUnavailable(t *testing.T) {
	l := New(nil)
	assert.Nil(t, l.Locate(context.Background(), testImage()))
	assert.ErrorIs(t, l.Err(), types.ErrDetectorUnavailable)
}

func TestOpenerReturningNilBackend(t *testing.T) {
	l := New(func() (Backend, error) { return nil, nil })
	assert.False(t, l.Available())
}

func TestWithMinConfidence(t *testing.T) {
	backend := &fakeBackend{candidates: []types.Candidate{{Width: 10, Height: 10, Confidence: 0.3}}}
	open := func() (Backend, error) { return backend, nil }

	assert.Nil(t, New(open).Locate(context.Background(), testImage()))
	assert.NotNil(t, New(open, WithMinConfidence(0.2)).Locate(context.Background(), testImage()))
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{
		"pigo": KindPigo, "Ollama": KindOllama, "llamacpp": KindLlamaCpp, "none": KindNone, "": KindNone,
	} {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("mediapipe")
	assert.Error(t, err)
}

func TestOpenPigoMissingFile(t *testing.T) {
	l := NewFromConfig(Config{Kind: KindPigo, CascadePath: filepath.Join(t.TempDir(), "facefinder")})
	assert.False(t, l.Available())
	assert.ErrorIs(t, l.Err(), types.ErrDetectorUnavailable)

	l = NewFromConfig(Config{Kind: KindPigo})
	assert.False(t, l.Available())
}

func TestNewPigoBackendEmpty(t *testing.T) {
	_, err := NewPigoBackend(nil, DefaultPigoParams())
	assert.Error(t, err)
}

func TestConvertDetections(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 100, Col: 80, Scale: 40, Q: 50},
		{Row: 10, Col: 10, Scale: 20, Q: 250},
		{Row: 10, Col: 10, Scale: 20, Q: -3},
	}
	got := convertDetections(dets, 100)
	require.Len(t, got, 3)
	assert.Equal(t, types.Candidate{X: 60, Y: 80, Width: 40, Height: 40, Confidence: 0.5}, got[0])
	assert.Equal(t, 1.0, got[1].Confidence)
	assert.Equal(t, 0.0, got[2].Confidence)
}

func TestNoneKind(t *testing.T) {
	l := NewFromConfig(Config{Kind: KindNone})
	assert.False(t, l.Available())
}
