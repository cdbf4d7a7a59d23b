package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dunamismax/batchpix/internal/domain"
	_ "golang.org/x/image/webp"
)

// Decode parses raw source bytes into a pixel surface. The declared mime is
// the intake contract; the actual codec is sniffed from the bytes, so a
// mislabeled but parseable file still decodes.
func Decode(data []byte, declaredMime string) (image.Image, error) {
	if !SupportedMime(declaredMime) {
		return nil, fmt.Errorf("%w: declared mime %q", domain.ErrDecode, declaredMime)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return img, nil
}

func SupportedMime(mime string) bool {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}
