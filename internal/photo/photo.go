// Package photo loads raw drone survey photos with their capture metadata.
package photo

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"argos/internal/exif"
	"argos/internal/geo"
)

var ErrWindow = errors.New("window outside photo")

// Photo is a decoded survey photo.
type Photo struct {
	Path  string
	Image image.Image
	meta  geo.CameraExif
}

// Load decodes the photo at path and reads its capture metadata. The file is
// closed before Load returns.
func Load(path string, opts exif.Options) (*Photo, error) {
	meta, err := exif.ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if meta.Width != b.Dx() || meta.Height != b.Dy() {
		meta.Width, meta.Height = b.Dx(), b.Dy()
	}
	return &Photo{Path: path, Image: img, meta: meta}, nil
}

// New wraps an already decoded image and its metadata.
func New(img image.Image, meta geo.CameraExif) *Photo {
	b := img.Bounds()
	meta.Width, meta.Height = b.Dx(), b.Dy()
	return &Photo{Image: img, meta: meta}
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Exif returns the capture metadata.
func (p *Photo) Exif() geo.CameraExif { return p.meta }

// Bounds returns the pixel extent, with the origin at (0, 0).
func (p *Photo) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Image.Bounds().Dx(), p.Image.Bounds().Dy())
}

// Width returns the image width in pixels.
func (p *Photo) Width() int { return p.Image.Bounds().Dx() }

// Height returns the image height in pixels.
func (p *Photo) Height() int { return p.Image.Bounds().Dy() }

// PixelAt returns the color at (x, y), or black outside the photo.
func (p *Photo) PixelAt(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Bounds()) {
		return color.Black
	}
	min := p.Image.Bounds().Min
	return p.Image.At(min.X+x, min.Y+y)
}

// Window returns r as single-channel intensity, with bounds r.
func (p *Photo) Window(r image.Rectangle) (*image.Gray, error) {
	if r.Empty() || !r.In(p.Bounds()) {
		return nil, fmt.Errorf("%w: %v not in %v", ErrWindow, r, p.Bounds())
	}
	gray := image.NewGray(r)
	min := p.Image.Bounds().Min
	draw.Draw(gray, r, p.Image, min.Add(r.Min), draw.Src)
	return gray, nil
}

// SupportedFormats returns the photo file extensions Load can decode.
func SupportedFormats() []string {
	return []string{".jpg", ".jpeg", ".tiff", ".tif", ".png"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// Glob lists the supported photos in dir, sorted by name.
func Glob(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && IsSupportedFormat(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
