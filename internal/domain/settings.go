package domain

import (
	"errors"
	"fmt"
)

type Tool string

const (
	ToolCompress Tool = "compress"
	ToolResize   Tool = "resize"
	ToolCrop     Tool = "crop"
	ToolRotate   Tool = "rotate"
	ToolConvert  Tool = "convert"
	ToolMD5      Tool = "md5"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Ext returns the filename extension for the format, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

// Opaque reports whether the format drops the alpha channel on encode.
// Transparent source regions must be flattened onto white before encoding
// to such a format or they render as black.
func (f Format) Opaque() bool {
	return f == FormatJPEG
}

// SupportsQuality reports whether the format interprets a quality knob as a
// monotonic size/fidelity trade-off. PNG is lossless and ignores it.
func (f Format) SupportsQuality() bool {
	return f == FormatJPEG || f == FormatWebP
}

type ResizeMode string

const (
	ResizeModePercentage ResizeMode = "percentage"
	ResizeModeDimensions ResizeMode = "dimensions"
)

type CompressSettings struct {
	MaxSizeKB int `json:"max_size_kb"`
	// MaxWidthOrHeight caps the larger dimension before the quality search
	// runs. Zero disables the downscale.
	MaxWidthOrHeight int `json:"max_width_or_height,omitempty"`
}

type ResizeSettings struct {
	Mode       ResizeMode `json:"mode"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
	Percentage float64    `json:"percentage,omitempty"`
	// MaintainAspectRatio derives the other axis from the source ratio.
	// When both Width and Height are set, Width wins.
	MaintainAspectRatio bool `json:"maintain_aspect_ratio,omitempty"`
}

// CropSettings targets an aspect ratio. RatioW/RatioH of 0 means keep the
// original ratio, which skips cropping entirely.
type CropSettings struct {
	RatioW int `json:"ratio_w,omitempty"`
	RatioH int `json:"ratio_h,omitempty"`
}

func (c CropSettings) Original() bool {
	return c.RatioW <= 0 || c.RatioH <= 0
}

type RotateSettings struct {
	Angle          int  `json:"angle"`
	FlipHorizontal bool `json:"flip_horizontal,omitempty"`
	FlipVertical   bool `json:"flip_vertical,omitempty"`
}

// TransformSettings is a tagged union over the available tools. Tool selects
// the active variant; Format is shared by every variant. A job snapshots the
// whole record at the moment processing starts.
type TransformSettings struct {
	Tool     Tool             `json:"tool"`
	Format   Format           `json:"format"`
	Compress CompressSettings `json:"compress,omitempty"`
	Resize   ResizeSettings   `json:"resize,omitempty"`
	Crop     CropSettings     `json:"crop,omitempty"`
	Rotate   RotateSettings   `json:"rotate,omitempty"`
}

func (s TransformSettings) Validate() error {
	switch s.Format {
	case FormatJPEG, FormatPNG, FormatWebP:
	case "":
		return errors.New("format is required")
	default:
		return fmt.Errorf("unsupported format: %s", s.Format)
	}

	switch s.Tool {
	case ToolCompress:
		if s.Compress.MaxSizeKB <= 0 {
			return errors.New("compress.max_size_kb must be positive")
		}
		if s.Compress.MaxWidthOrHeight < 0 {
			return errors.New("compress.max_width_or_height must not be negative")
		}
	case ToolResize:
		switch s.Resize.Mode {
		case ResizeModePercentage:
			if s.Resize.Percentage <= 0 {
				return errors.New("resize.percentage must be positive")
			}
		case ResizeModeDimensions:
			if s.Resize.Width <= 0 && s.Resize.Height <= 0 {
				return errors.New("resize requires width or height")
			}
			if s.Resize.Width < 0 || s.Resize.Height < 0 {
				return errors.New("resize dimensions must not be negative")
			}
		default:
			return fmt.Errorf("unsupported resize mode: %s", s.Resize.Mode)
		}
	case ToolCrop:
		if !s.Crop.Original() && (s.Crop.RatioW <= 0 || s.Crop.RatioH <= 0) {
			return errors.New("crop ratio sides must be positive")
		}
	case ToolRotate:
		switch s.Rotate.Angle {
		case 0, 90, 180, 270:
		default:
			return fmt.Errorf("unsupported rotate angle: %d", s.Rotate.Angle)
		}
	case ToolConvert, ToolMD5:
		// Format alone drives these.
	case "":
		return errors.New("tool is required")
	default:
		return fmt.Errorf("unsupported tool: %s", s.Tool)
	}

	return nil
}

// OutputSuffix is appended to the source base name per tool.
func (s TransformSettings) OutputSuffix() string {
	switch s.Tool {
	case ToolCompress:
		return "_min"
	case ToolResize:
		return "_resized"
	case ToolCrop:
		return "_cropped"
	case ToolRotate:
		return "_rotated"
	case ToolMD5:
		return "_safe"
	default:
		return "_new"
	}
}
