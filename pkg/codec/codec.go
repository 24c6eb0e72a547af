package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/headshot/pkg/types"
)

// Format is an output encoding
type Format string

// Supported output formats. Both are lossless.
const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat parses an output format name
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png", "":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", name)
	}
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Codec decodes uploaded photos and encodes framed results
type Codec struct {
	config Config
}

// Config holds configuration for the codec
type Config struct {
	SupportedTypes []string
	AutoOrient     bool
	MinImageSize   int
}

// DefaultConfig accepts JPEG, PNG and WebP and applies EXIF orientation
func DefaultConfig() Config {
	return Config{
		SupportedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		AutoOrient:     true,
		MinImageSize:   1,
	}
}

// New creates a new Codec with default configuration
func New() *Codec {
	return &Codec{config: DefaultConfig()}
}

// NewWithConfig creates a new Codec with custom configuration
func NewWithConfig(config Config) *Codec {
	if len(config.SupportedTypes) == 0 {
		config.SupportedTypes = DefaultConfig().SupportedTypes
	}
	if config.MinImageSize < 1 {
		config.MinImageSize = 1
	}
	return &Codec{config: config}
}

// Decode decodes raw image bytes into an opaque RGB image.
// Any failure is reported as types.ErrInvalidImage.
func (c *Codec) Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data: %w", types.ErrInvalidImage)
	}

	mime := mimetype.Detect(data)
	if !c.isTypeSupported(mime) {
		return nil, fmt.Errorf("unsupported image type %s: %w", mime.String(), types.ErrInvalidImage)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(c.config.AutoOrient))
	if err != nil && mime.Is("image/webp") {
		// Fallback: explicit WebP decode
		img, err = webp.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v: %w", err, types.ErrInvalidImage)
	}

	if err := c.Validate(img); err != nil {
		return nil, err
	}

	return ToRGB(img), nil
}

// DecodeReader reads r fully and decodes it
func (c *Codec) DecodeReader(r io.Reader) (*image.NRGBA, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return c.Decode(data)
}

// Encode encodes img as PNG
func (c *Codec) Encode(img image.Image) ([]byte, error) {
	return c.EncodeAs(img, FormatPNG)
}

// EncodeAs encodes img with the given lossless format
func (c *Codec) EncodeAs(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodeTo(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes img to w with the given lossless format
func (c *Codec) EncodeTo(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPNG:
		err = imaging.Encode(w, img, imaging.PNG)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: true})
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}

// Validate checks if an image meets minimum requirements
func (c *Codec) Validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("nil image: %w", types.ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() < c.config.MinImageSize || bounds.Dy() < c.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d): %w",
			bounds.Dx(), bounds.Dy(), c.config.MinImageSize, types.ErrInvalidImage)
	}
	return nil
}

func (c *Codec) isTypeSupported(mime *mimetype.MIME) bool {
	for _, supported := range c.config.SupportedTypes {
		if mime.Is(supported) {
			return true
		}
	}
	return false
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// Info returns basic information about an image
func Info(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ToRGB returns an opaque copy of img. Color values are kept as stored, so
// transparent pixels show their underlying color.
func ToRGB(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = 0xff
		return c
	})
}
