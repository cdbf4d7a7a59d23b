//go:build !govips || !cgo

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/dunamismax/batchpix/internal/domain"
)

type stdEncoder struct{}

func newEncoder() Encoder {
	return stdEncoder{}
}

func (stdEncoder) Encode(img image.Image, format domain.Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: qualityScale(quality)}); err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", domain.ErrEncode, err)
		}
	case domain.FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: png: %v", domain.ErrEncode, err)
		}
	case domain.FormatWebP:
		return nil, fmt.Errorf("%w: webp export requires the govips build tag", domain.ErrEncode)
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", domain.ErrEncode, format)
	}

	return buf.Bytes(), nil
}
