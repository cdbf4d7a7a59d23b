package imaging

import (
	"image"

	"github.com/dunamismax/batchpix/internal/domain"
)

const (
	searchMinQuality = 0.1
	searchMaxIter    = 10
	searchQualityGap = 0.05
	fallbackQuality  = 0.5
)

// SearchSizeTarget finds the highest quality whose encoded output fits the
// byte budget, by bisecting the quality interval. It converges within
// searchMaxIter encodes or a searchQualityGap interval, whichever comes
// first. Geometry is never renegotiated here: when even the lowest quality
// at the current dimensions cannot fit, the fixed mid-quality fallback is
// returned with met=false instead of an error. Callers needing a strict
// guarantee inspect met.
func SearchSizeTarget(enc Encoder, img image.Image, format domain.Format, targetBytes int) (data []byte, met bool, err error) {
	minQ := searchMinQuality
	maxQ := 1.0
	var best []byte

	for iter := 0; iter < searchMaxIter; iter++ {
		q := (minQ + maxQ) / 2
		blob, encErr := enc.Encode(img, format, q)
		if encErr != nil {
			break
		}
		if len(blob) <= targetBytes {
			best = blob
			minQ = q
		} else {
			maxQ = q
		}
		if maxQ-minQ < searchQualityGap {
			break
		}
	}

	if best != nil {
		return best, true, nil
	}

	blob, err := enc.Encode(img, format, fallbackQuality)
	if err != nil {
		return nil, false, err
	}
	return blob, false, nil
}
