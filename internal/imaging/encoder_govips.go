//go:build govips && cgo

package imaging

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/batchpix/internal/domain"
)

type govipsEncoder struct{}

func newEncoder() Encoder {
	return govipsEncoder{}
}

func (govipsEncoder) Encode(img image.Image, format domain.Format, quality float64) ([]byte, error) {
	rgba := toRGBA(img)
	ref, err := vips.NewImageFromMemory(rgba.Pix, rgba.Rect.Dx(), rgba.Rect.Dy(), 4)
	if err != nil {
		return nil, fmt.Errorf("%w: import surface: %v", domain.ErrEncode, err)
	}
	defer ref.Close()

	q := qualityScale(quality)

	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = q
		data, _, err := ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", domain.ErrEncode, err)
		}
		return data, nil
	case domain.FormatPNG:
		params := vips.NewPngExportParams()
		data, _, err := ref.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("%w: png: %v", domain.ErrEncode, err)
		}
		return data, nil
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = q
		data, _, err := ref.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("%w: webp: %v", domain.ErrEncode, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", domain.ErrEncode, format)
	}
}

// toRGBA guarantees a tightly packed 4-band buffer for the vips import.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
