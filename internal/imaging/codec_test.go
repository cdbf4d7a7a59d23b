package imaging

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/dunamismax/batchpix/internal/domain"
)

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image"), "image/png"); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedMime(t *testing.T) {
	if _, err := Decode(encodeTestPNG(t, 4, 4), "image/gif"); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode for unsupported mime, got %v", err)
	}
}

func TestDecodeReadsDimensions(t *testing.T) {
	img, err := Decode(encodeTestPNG(t, 24, 12), "image/png")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 24 || img.Bounds().Dy() != 12 {
		t.Fatalf("expected 24x12, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncodePNGIgnoresQuality(t *testing.T) {
	enc := NewEncoder()
	img := buildGradientRGBA(16, 16)

	low, err := enc.Encode(img, domain.FormatPNG, 0.2)
	if err != nil {
		t.Fatalf("encode at low quality: %v", err)
	}
	high, err := enc.Encode(img, domain.FormatPNG, 0.9)
	if err != nil {
		t.Fatalf("encode at high quality: %v", err)
	}
	if !bytes.Equal(low, high) {
		t.Fatal("png output must not vary with the quality knob")
	}
}

func TestEncodeJPEGQualityIsMonotonic(t *testing.T) {
	enc := NewEncoder()
	img := buildGradientRGBA(120, 120)

	low, err := enc.Encode(img, domain.FormatJPEG, 0.2)
	if err != nil {
		t.Fatalf("encode at low quality: %v", err)
	}
	high, err := enc.Encode(img, domain.FormatJPEG, 0.95)
	if err != nil {
		t.Fatalf("encode at high quality: %v", err)
	}
	if len(high) <= len(low) {
		t.Fatalf("expected higher quality to produce more bytes: low=%d high=%d", len(low), len(high))
	}
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, buildGradientRGBA(w, h)); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
