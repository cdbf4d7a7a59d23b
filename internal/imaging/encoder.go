package imaging

import (
	"image"
	"math"

	"github.com/dunamismax/batchpix/internal/domain"
)

// Encoder serializes a pixel surface to compressed bytes. Quality is in
// [0,1] and is a monotonic size/fidelity knob for lossy formats; lossless
// formats ignore it and always produce a valid payload.
type Encoder interface {
	Encode(img image.Image, format domain.Format, quality float64) ([]byte, error)
}

// NewEncoder returns the backend selected at build time: govips when built
// with the govips tag under cgo, the stdlib codecs otherwise.
func NewEncoder() Encoder {
	return newEncoder()
}

// qualityScale maps the [0,1] knob onto the 1..100 range the codecs expect.
func qualityScale(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}
