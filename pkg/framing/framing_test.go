package framing

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/pkg/types"
)

// createTestImage creates a gradient image with a bright "head" in the upper middle
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/6 && y < height/2 {
				img.Set(x, y, color.RGBA{230, 190, 160, 255})
			} else {
				img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 96, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	e := New()
	require.NotNil(t, e)
	assert.Equal(t, 1024, e.Config().OutputSize)
	assert.Equal(t, types.Portrait, e.Config().Aspect)
}

func TestNewWithConfigDefaults(t *testing.T) {
	e := NewWithConfig(Config{})
	assert.Equal(t, DefaultOutputSize, e.Config().OutputSize)
	assert.Equal(t, types.Portrait, e.Config().Aspect)
}

func TestOutputDimensions(t *testing.T) {
	tests := []struct {
		size  int
		wantH int
	}{
		{1024, 1280},
		{512, 640},
		{100, 125},
		{3, 4},     // 3.75
		{101, 126}, // 126.25
		{1, 1},     // 1.25
	}
	for _, tt := range tests {
		w, h := OutputDimensions(tt.size, types.Portrait)
		assert.Equal(t, tt.size, w)
		assert.Equal(t, tt.wantH, h, "size %d", tt.size)
	}
}

func TestPlanFallbackSquare(t *testing.T) {
	r := PlanFallback(1000, 1000, types.Portrait)
	assert.Equal(t, types.CropRegion{Left: 100, Top: 0, Right: 900, Bottom: 1000}, r)
	assert.Equal(t, 800, r.Width())
	assert.Equal(t, 1000, r.Height())
}

func TestPlanFallbackTallImage(t *testing.T) {
	// 600x1200: new_w = min(600, 960) = 600, new_h = min(1200, 750) = 750
	r := PlanFallback(600, 1200, types.Portrait)
	assert.Equal(t, types.CropRegion{Left: 0, Top: 150, Right: 600, Bottom: 900}, r)
}

func TestPlanFallbackWideImage(t *testing.T) {
	// 1920x1080: new_w = 864, new_h = 1080, left = 528
	r := PlanFallback(1920, 1080, types.Portrait)
	assert.Equal(t, types.CropRegion{Left: 528, Top: 0, Right: 1392, Bottom: 1080}, r)
}

func TestPlanFallbackIsDeterministic(t *testing.T) {
	first := PlanFallback(1234, 987, types.Portrait)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, PlanFallback(1234, 987, types.Portrait))
	}
}

func TestPlanFaceScenario(t *testing.T) {
	// cx=200 cy=200, box 440x600, top -10 -> 0, left -20 -> 0
	r := PlanFace(1000, 1000, types.BoundingBox{X: 100, Y: 100, Width: 200, Height: 200})
	assert.Equal(t, types.CropRegion{Left: 0, Top: 0, Right: 420, Bottom: 600}, r)

	trim := NormalizeAspect(r.Width(), r.Height(), types.Portrait)
	assert.Equal(t, types.CropRegion{Left: 0, Top: 25, Right: 420, Bottom: 550}, trim)
	assert.Equal(t, 525, trim.Height())
}

func TestNormalizeAspectBranches(t *testing.T) {
	tests := []struct {
		name   string
		face   types.BoundingBox
		region types.CropRegion
		trim   types.CropRegion
	}{
		{
			name:   "wide face trims width",
			face:   types.BoundingBox{X: 0, Y: 0, Width: 400, Height: 200},
			region: types.CropRegion{Left: 0, Top: 0, Right: 640, Bottom: 600},
			trim:   types.CropRegion{Left: 80, Top: 0, Right: 560, Bottom: 600},
		},
		{
			name:   "tall face trims height",
			face:   types.BoundingBox{X: 0, Y: 0, Width: 100, Height: 400},
			region: types.CropRegion{Left: 0, Top: 0, Right: 160, Bottom: 1000},
			trim:   types.CropRegion{Left: 0, Top: 266, Right: 160, Bottom: 466},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region := PlanFace(1000, 1000, tt.face)
			assert.Equal(t, tt.region, region)
			assert.Equal(t, tt.trim, NormalizeAspect(region.Width(), region.Height(), types.Portrait))
		})
	}
}

func TestNormalizeAspectExactRatioTrimsNothing(t *testing.T) {
	trim := NormalizeAspect(400, 500, types.Portrait)
	assert.Equal(t, types.CropRegion{Left: 0, Top: 0, Right: 400, Bottom: 500}, trim)
}

func TestPlanFaceStaysInsideImage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		w := 1 + rng.Intn(2000)
		h := 1 + rng.Intn(2000)
		face := types.BoundingBox{
			X:      rng.Intn(w+400) - 200,
			Y:      rng.Intn(h+400) - 200,
			Width:  1 + rng.Intn(w),
			Height: 1 + rng.Intn(h),
		}

		r := PlanFace(w, h, face)
		require.GreaterOrEqual(t, r.Left, 0, "face %+v in %dx%d", face, w, h)
		require.GreaterOrEqual(t, r.Top, 0, "face %+v in %dx%d", face, w, h)
		require.LessOrEqual(t, r.Right, w, "face %+v in %dx%d", face, w, h)
		require.LessOrEqual(t, r.Bottom, h, "face %+v in %dx%d", face, w, h)
		require.Greater(t, r.Right, r.Left)
		require.Greater(t, r.Bottom, r.Top)

		trim := NormalizeAspect(r.Width(), r.Height(), types.Portrait)
		require.GreaterOrEqual(t, trim.Left, 0)
		require.GreaterOrEqual(t, trim.Top, 0)
		require.LessOrEqual(t, trim.Right, r.Width())
		require.LessOrEqual(t, trim.Bottom, r.Height())
		require.Greater(t, trim.Width(), 0)
		require.Greater(t, trim.Height(), 0)
	}
}

func TestPlanFaceOutsideImage(t *testing.T) {
	r := PlanFace(100, 100, types.BoundingBox{X: 500, Y: 500, Width: 20, Height: 20})
	assert.Greater(t, r.Right, r.Left)
	assert.Greater(t, r.Bottom, r.Top)
	assert.LessOrEqual(t, r.Right, 100)
	assert.LessOrEqual(t, r.Bottom, 100)
}

func TestPlanZeroAreaFaceFallsBack(t *testing.T) {
	res, err := New().Plan(1000, 1000, &types.BoundingBox{X: 10, Y: 10})
	require.NoError(t, err)
	assert.False(t, res.FaceBased)
	assert.Equal(t, PlanFallback(1000, 1000, types.Portrait), res.Final())
}

func TestPlanInvalidImage(t *testing.T) {
	_, err := New().Plan(0, 100, nil)
	assert.ErrorIs(t, err, types.ErrInvalidImage)

	_, err = New().Plan(100, 0, nil)
	assert.ErrorIs(t, err, types.ErrInvalidImage)
}

func TestFrameFallback(t *testing.T) {
	img := createTestImage(1000, 1000)

	res, err := New().Frame(img, nil)
	require.NoError(t, err)
	assert.False(t, res.FaceBased)
	assert.Equal(t, types.CropRegion{Left: 100, Top: 0, Right: 900, Bottom: 1000}, res.Final())

	b := res.Image.Bounds()
	assert.Equal(t, 1024, b.Dx())
	assert.Equal(t, 1280, b.Dy())
}

func TestFrameWithFace(t *testing.T) {
	img := createTestImage(1000, 1000)

	res, err := New().Frame(img, &types.BoundingBox{X: 100, Y: 100, Width: 200, Height: 200})
	require.NoError(t, err)
	assert.True(t, res.FaceBased)
	assert.Equal(t, types.CropRegion{Left: 0, Top: 25, Right: 420, Bottom: 550}, res.Final())
	assert.Equal(t, image.Rect(0, 0, 1024, 1280), res.Image.Bounds())
}

func TestFrameOutputAspect(t *testing.T) {
	e := NewWithConfig(Config{OutputSize: 256, Aspect: types.Portrait})
	sizes := [][2]int{{1, 1}, {3, 7}, {640, 480}, {480, 640}, {1000, 10}, {10, 1000}}
	faces := []*types.BoundingBox{
		nil,
		{X: 0, Y: 0, Width: 1, Height: 1},
		{X: 2, Y: 2, Width: 50, Height: 30},
	}

	for _, sz := range sizes {
		img := createTestImage(sz[0], sz[1])
		for _, face := range faces {
			res, err := e.Frame(img, face)
			require.NoError(t, err)
			b := res.Image.Bounds()
			assert.Equal(t, 256, b.Dx(), "size %v face %v", sz, face)
			assert.Equal(t, 320, b.Dy(), "size %v face %v", sz, face)
		}
	}
}

func TestFrameOffsetBounds(t *testing.T) {
	full := createTestImage(400, 400).(*image.RGBA)
	sub := full.SubImage(image.Rect(50, 50, 350, 350))

	res, err := NewWithConfig(Config{OutputSize: 64, Aspect: types.Portrait, Filter: DefaultConfig().Filter}).Frame(sub, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 80), res.Image.Bounds())
}

func TestFilterByName(t *testing.T) {
	for _, name := range []string{"lanczos", "Bicubic", " linear ", "nearest", "catmullrom"} {
		_, err := FilterByName(name)
		assert.NoError(t, err, name)
	}
	_, err := FilterByName("sinc")
	assert.Error(t, err)
}

func BenchmarkFrameFallback(b *testing.B) {
	e := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Frame(img, nil)
	}
}

func BenchmarkFrameFace(b *testing.B) {
	e := New()
	img := createTestImage(1920, 1080)
	face := &types.BoundingBox{X: 860, Y: 300, Width: 200, Height: 240}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Frame(img, face)
	}
}
