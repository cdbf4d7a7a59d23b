package imaging

import (
	"errors"
	"image"
	"testing"

	"github.com/dunamismax/batchpix/internal/domain"
)

// sizedEncoder produces blobs whose length grows monotonically with quality,
// so the bisection result is fully predictable.
type sizedEncoder struct {
	calls int
	fail  bool
}

func (e *sizedEncoder) Encode(_ image.Image, _ domain.Format, quality float64) ([]byte, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("encoder unavailable")
	}
	return make([]byte, int(quality*1000)), nil
}

func TestSearchSizeTargetFindsHighestFittingQuality(t *testing.T) {
	enc := &sizedEncoder{}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	data, met, err := SearchSizeTarget(enc, img, domain.FormatJPEG, 600)
	if err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if !met {
		t.Fatal("expected target to be met")
	}
	if len(data) > 600 {
		t.Fatalf("result exceeds budget: %d bytes", len(data))
	}
	// Converged result should sit close under the budget, not at the floor.
	if len(data) < 500 {
		t.Fatalf("expected near-budget quality, got %d bytes", len(data))
	}
	if enc.calls > searchMaxIter {
		t.Fatalf("expected at most %d encodes, got %d", searchMaxIter, enc.calls)
	}
}

func TestSearchSizeTargetFallsBackWhenUnreachable(t *testing.T) {
	enc := &sizedEncoder{}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	data, met, err := SearchSizeTarget(enc, img, domain.FormatJPEG, 10)
	if err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if met {
		t.Fatal("expected unmet target to be signalled")
	}
	if len(data) != 500 {
		t.Fatalf("expected mid-quality fallback of 500 bytes, got %d", len(data))
	}
}

func TestSearchSizeTargetPropagatesEncoderFailure(t *testing.T) {
	enc := &sizedEncoder{fail: true}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	if _, _, err := SearchSizeTarget(enc, img, domain.FormatJPEG, 600); err == nil {
		t.Fatal("expected error when every encode fails")
	}
}

func TestSearchSizeTargetWithJPEGEncoder(t *testing.T) {
	img := buildGradientRGBA(240, 120)
	target := 8 * 1024

	data, met, err := SearchSizeTarget(NewEncoder(), img, domain.FormatJPEG, target)
	if err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if !met {
		t.Fatal("expected an 8KB budget to be reachable for a small gradient")
	}
	if len(data) > target {
		t.Fatalf("result exceeds budget: %d > %d", len(data), target)
	}
}
