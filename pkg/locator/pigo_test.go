package locator

import (
	"context"
	"image"
	"os"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cascadeFixture  = "testdata/facefinder"
	portraitFixture = "testdata/portrait.jpg"
)

func loadPortrait(t *testing.T) image.Image {
	t.Helper()
	img, err := imaging.Open(portraitFixture)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 320, 400), img.Bounds())
	return img
}

func TestPigoBackendFindsFace(t *testing.T) {
	data, err := os.ReadFile(cascadeFixture)
	require.NoError(t, err)

	b, err := NewPigoBackend(data, DefaultPigoParams())
	require.NoError(t, err)

	cands, err := b.Detect(context.Background(), loadPortrait(t))
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	for _, c := range cands {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		assert.Equal(t, c.Width, c.Height)
	}

	best := SelectLargest(cands, DefaultMinConfidence)
	require.NotNil(t, best)

	// The portrait's face spans roughly x 50..270, y 70..350
	cx, cy := best.Center()
	assert.InDelta(t, 160, cx, 50)
	assert.InDelta(t, 210, cy, 70)
	assert.Greater(t, best.Width, 80)
	assert.LessOrEqual(t, best.Width, 320)
	assert.Equal(t, best.Width, best.Height)
}

func TestPigoLocatorFromConfig(t *testing.T) {
	l := NewFromConfig(Config{Kind: KindPigo, CascadePath: cascadeFixture})
	require.True(t, l.Available())
	require.NoError(t, l.Err())

	face, err := l.Detect(context.Background(), loadPortrait(t))
	require.NoError(t, err)
	require.NotNil(t, face)
	assert.True(t, image.Rect(face.X, face.Y, face.X+face.Width, face.Y+face.Height).Overlaps(image.Rect(100, 150, 220, 280)))
}

func TestPigoBackendTooSmall(t *testing.T) {
	data, err := os.ReadFile(cascadeFixture)
	require.NoError(t, err)

	b, err := NewPigoBackend(data, DefaultPigoParams())
	require.NoError(t, err)

	// Shorter than the minimum face size
	cands, err := b.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 200, 10)))
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestPigoBackendCanceled(t *testing.T) {
	data, err := os.ReadFile(cascadeFixture)
	require.NoError(t, err)

	b, err := NewPigoBackend(data, DefaultPigoParams())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Detect(ctx, loadPortrait(t))
	assert.ErrorIs(t, err, context.Canceled)
}
