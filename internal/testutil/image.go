package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// WordSize fits one short word in the 7x13 basic font.
	WordSize = ImageSize{100, 50}
	// SmallSize is a generic thumbnail-sized image.
	SmallSize = ImageSize{320, 240}
)

// TestImageConfig holds configuration for generating test images.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTestImageConfig returns black "HELLO" on a white 100x50 canvas.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "HELLO",
		Size:       WordSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// GenerateTextImage renders config.Text centered on a solid background.
// Empty text yields a blank image.
func GenerateTextImage(config TestImageConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)
	if config.Text == "" {
		return img
	}

	face := config.FontFace
	if face == nil {
		face = basicfont.Face7x13
	}
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{config.Foreground},
		Face: face,
	}
	textWidth := font.MeasureString(face, config.Text).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	x := (config.Size.Width - textWidth) / 2
	y := (config.Size.Height + textHeight) / 2
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(config.Text)

	return img
}

// CreateTestImage creates a solid image with the given dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// CreateTestImageWithText renders text in black on a white image.
func CreateTestImageWithText(text string, width, height int) image.Image {
	config := DefaultTestImageConfig()
	config.Text = text
	config.Size = ImageSize{Width: width, Height: height}
	return GenerateTextImage(config)
}

// PNGBytes encodes img as PNG.
func PNGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// JPEGBytes encodes img as JPEG at high quality.
func JPEGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}), "Failed to encode JPEG image")
	return buf.Bytes()
}

// HelloPNG is the 100x50 "HELLO" image as PNG bytes.
func HelloPNG(t testing.TB) []byte {
	t.Helper()
	return PNGBytes(t, GenerateTextImage(DefaultTestImageConfig()))
}

// BlankPNG is a white image of the given size as PNG bytes.
func BlankPNG(t testing.TB, width, height int) []byte {
	t.Helper()
	return PNGBytes(t, CreateTestImage(width, height, color.White))
}

// CorruptPNG returns a PNG signature followed by garbage.
func CorruptPNG() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), []byte("definitely not an IHDR chunk")...)
}

// InkPixels counts pixels darker than mid-gray.
func InkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if gray.Y < 128 {
				n++
			}
		}
	}
	return n
}
