package imaging

import "image"

// Perturb nudges the first channel of the pixel at (0,0) by one step,
// decrementing when already at the channel maximum. The edit is below
// perceptual threshold but forces the encoded output bytes to differ from
// any prior encoding of visually identical content.
func Perturb(img *image.RGBA) {
	if len(img.Pix) == 0 {
		return
	}
	if img.Pix[0] == 0xFF {
		img.Pix[0]--
	} else {
		img.Pix[0]++
	}
}
