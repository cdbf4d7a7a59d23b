package imaging

import (
	"image"
	"image/draw"
	"math"

	"github.com/dunamismax/batchpix/internal/domain"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Plan describes the output surface and how the source maps onto it. It is
// computed purely from the source dimensions and the settings, so geometry
// decisions are testable without touching pixels.
type Plan struct {
	Width  int
	Height int
	// SrcRect is the source region composited onto the output. Narrower than
	// the source bounds only for centered crops.
	SrcRect image.Rectangle
	// Scale means SrcRect is resampled to fill the output instead of copied.
	Scale bool
	Angle int
	FlipH bool
	FlipV bool
	// FillWhite flattens transparency onto white so opaque target formats do
	// not render transparent regions as black.
	FillWhite bool
}

// PlanFor dispatches on the settings' tool variant. Pass-through tools
// (convert, md5) keep the source geometry untouched; only compress applies
// the max-dimension downscale.
func PlanFor(srcW, srcH int, s domain.TransformSettings) Plan {
	p := Plan{
		Width:     srcW,
		Height:    srcH,
		SrcRect:   image.Rect(0, 0, srcW, srcH),
		FillWhite: s.Format.Opaque(),
	}

	switch s.Tool {
	case domain.ToolCompress:
		limit := s.Compress.MaxWidthOrHeight
		if limit > 0 && (srcW > limit || srcH > limit) {
			ratio := float64(srcW) / float64(srcH)
			if ratio > 1 {
				p.Width = limit
				p.Height = roundDim(float64(limit) / ratio)
			} else {
				p.Height = limit
				p.Width = roundDim(float64(limit) * ratio)
			}
			p.Scale = true
		}

	case domain.ToolResize:
		switch s.Resize.Mode {
		case domain.ResizeModePercentage:
			p.Width = roundDim(float64(srcW) * s.Resize.Percentage / 100)
			p.Height = roundDim(float64(srcH) * s.Resize.Percentage / 100)
		case domain.ResizeModeDimensions:
			if s.Resize.MaintainAspectRatio {
				ratio := float64(srcW) / float64(srcH)
				// Width takes precedence when both axes are given.
				if s.Resize.Width > 0 {
					p.Width = s.Resize.Width
					p.Height = roundDim(float64(s.Resize.Width) / ratio)
				} else if s.Resize.Height > 0 {
					p.Height = s.Resize.Height
					p.Width = roundDim(float64(s.Resize.Height) * ratio)
				}
			} else {
				if s.Resize.Width > 0 {
					p.Width = s.Resize.Width
				}
				if s.Resize.Height > 0 {
					p.Height = s.Resize.Height
				}
			}
		}
		p.Scale = p.Width != srcW || p.Height != srcH

	case domain.ToolCrop:
		if s.Crop.Original() {
			break
		}
		sourceRatio := float64(srcW) / float64(srcH)
		targetRatio := float64(s.Crop.RatioW) / float64(s.Crop.RatioH)
		if sourceRatio > targetRatio {
			cropW := roundDim(float64(srcH) * targetRatio)
			offset := (srcW - cropW) / 2
			p.SrcRect = image.Rect(offset, 0, offset+cropW, srcH)
			p.Width = cropW
		} else {
			cropH := roundDim(float64(srcW) / targetRatio)
			offset := (srcH - cropH) / 2
			p.SrcRect = image.Rect(0, offset, srcW, offset+cropH)
			p.Height = cropH
		}

	case domain.ToolRotate:
		p.Angle = s.Rotate.Angle
		p.FlipH = s.Rotate.FlipHorizontal
		p.FlipV = s.Rotate.FlipVertical
		if p.Angle == 90 || p.Angle == 270 {
			p.Width, p.Height = srcH, srcW
		}
	}

	if p.Width < 1 {
		p.Width = 1
	}
	if p.Height < 1 {
		p.Height = 1
	}
	return p
}

// Render composites the source onto a fresh surface per the plan.
func Render(src image.Image, p Plan) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	if p.FillWhite {
		draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	}

	srcRect := p.SrcRect.Add(src.Bounds().Min)

	switch {
	case p.Angle != 0 || p.FlipH || p.FlipV:
		xdraw.NearestNeighbor.Transform(dst, rotateFlipMatrix(p, srcRect), src, srcRect, xdraw.Over, nil)
	case p.Scale:
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, xdraw.Over, nil)
	default:
		draw.Draw(dst, dst.Bounds(), src, srcRect.Min, draw.Over)
	}
	return dst
}

// rotateFlipMatrix maps source coordinates onto the output: translate the
// source center to the origin, rotate, apply the flip scale, then translate
// to the output center. Quarter-turn angles keep the mapping pixel-exact
// under nearest-neighbor sampling.
func rotateFlipMatrix(p Plan, srcRect image.Rectangle) f64.Aff3 {
	var cos, sin float64
	switch p.Angle {
	case 90:
		cos, sin = 0, 1
	case 180:
		cos, sin = -1, 0
	case 270:
		cos, sin = 0, -1
	default:
		cos, sin = 1, 0
	}

	sx, sy := 1.0, 1.0
	if p.FlipH {
		sx = -1
	}
	if p.FlipV {
		sy = -1
	}

	m00 := cos * sx
	m01 := -sin * sy
	m10 := sin * sx
	m11 := cos * sy

	srcCx := float64(srcRect.Min.X) + float64(srcRect.Dx())/2
	srcCy := float64(srcRect.Min.Y) + float64(srcRect.Dy())/2
	dstCx := float64(p.Width) / 2
	dstCy := float64(p.Height) / 2

	return f64.Aff3{
		m00, m01, dstCx - m00*srcCx - m01*srcCy,
		m10, m11, dstCy - m10*srcCx - m11*srcCy,
	}
}

func roundDim(v float64) int {
	return int(math.Round(v))
}
