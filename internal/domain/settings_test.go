package domain

import "testing"

func TestValidateAcceptsEachTool(t *testing.T) {
	cases := []TransformSettings{
		{Tool: ToolCompress, Format: FormatJPEG, Compress: CompressSettings{MaxSizeKB: 200}},
		{Tool: ToolCompress, Format: FormatWebP, Compress: CompressSettings{MaxSizeKB: 50, MaxWidthOrHeight: 1920}},
		{Tool: ToolResize, Format: FormatPNG, Resize: ResizeSettings{Mode: ResizeModePercentage, Percentage: 25}},
		{Tool: ToolResize, Format: FormatPNG, Resize: ResizeSettings{Mode: ResizeModeDimensions, Width: 800}},
		{Tool: ToolResize, Format: FormatPNG, Resize: ResizeSettings{Mode: ResizeModeDimensions, Height: 600, MaintainAspectRatio: true}},
		{Tool: ToolCrop, Format: FormatPNG, Crop: CropSettings{RatioW: 16, RatioH: 9}},
		{Tool: ToolCrop, Format: FormatPNG},
		{Tool: ToolRotate, Format: FormatJPEG, Rotate: RotateSettings{Angle: 270, FlipHorizontal: true}},
		{Tool: ToolConvert, Format: FormatWebP},
		{Tool: ToolMD5, Format: FormatPNG},
	}

	for _, settings := range cases {
		if err := settings.Validate(); err != nil {
			t.Fatalf("expected %s/%s to validate, got %v", settings.Tool, settings.Format, err)
		}
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name     string
		settings TransformSettings
	}{
		{"missing tool", TransformSettings{Format: FormatPNG}},
		{"unknown tool", TransformSettings{Tool: "sharpen", Format: FormatPNG}},
		{"missing format", TransformSettings{Tool: ToolConvert}},
		{"unknown format", TransformSettings{Tool: ToolConvert, Format: "tiff"}},
		{"compress without budget", TransformSettings{Tool: ToolCompress, Format: FormatJPEG}},
		{"compress negative cap", TransformSettings{Tool: ToolCompress, Format: FormatJPEG, Compress: CompressSettings{MaxSizeKB: 100, MaxWidthOrHeight: -1}}},
		{"resize without mode", TransformSettings{Tool: ToolResize, Format: FormatPNG}},
		{"resize zero percentage", TransformSettings{Tool: ToolResize, Format: FormatPNG, Resize: ResizeSettings{Mode: ResizeModePercentage}}},
		{"resize without dimensions", TransformSettings{Tool: ToolResize, Format: FormatPNG, Resize: ResizeSettings{Mode: ResizeModeDimensions}}},
		{"resize negative width", TransformSettings{Tool: ToolResize, Format: FormatPNG, Resize: ResizeSettings{Mode: ResizeModeDimensions, Width: -10, Height: 20}}},
		{"rotate odd angle", TransformSettings{Tool: ToolRotate, Format: FormatPNG, Rotate: RotateSettings{Angle: 45}}},
	}

	for _, tc := range cases {
		if err := tc.settings.Validate(); err == nil {
			t.Fatalf("expected %s to be rejected", tc.name)
		}
	}
}

func TestOutputFilenameDerivesSuffixAndExtension(t *testing.T) {
	cases := []struct {
		source   string
		settings TransformSettings
		want     string
	}{
		{"photo.png", TransformSettings{Tool: ToolCompress, Format: FormatJPEG}, "photo_min.jpg"},
		{"photo.jpeg", TransformSettings{Tool: ToolResize, Format: FormatPNG}, "photo_resized.png"},
		{"dir/scan.webp", TransformSettings{Tool: ToolCrop, Format: FormatWebP}, "scan_cropped.webp"},
		{"photo", TransformSettings{Tool: ToolRotate, Format: FormatPNG}, "photo_rotated.png"},
		{"dup.png", TransformSettings{Tool: ToolMD5, Format: FormatPNG}, "dup_safe.png"},
		{"photo.png", TransformSettings{Tool: ToolConvert, Format: FormatWebP}, "photo_new.webp"},
		{".hidden", TransformSettings{Tool: ToolConvert, Format: FormatPNG}, ".hidden_new.png"},
		{"", TransformSettings{Tool: ToolConvert, Format: FormatPNG}, "image_new.png"},
	}

	for _, tc := range cases {
		if got := OutputFilename(tc.source, tc.settings); got != tc.want {
			t.Fatalf("OutputFilename(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestFormatProperties(t *testing.T) {
	if !FormatJPEG.Opaque() || FormatPNG.Opaque() || FormatWebP.Opaque() {
		t.Fatal("only jpeg drops the alpha channel")
	}
	if !FormatJPEG.SupportsQuality() || !FormatWebP.SupportsQuality() || FormatPNG.SupportsQuality() {
		t.Fatal("quality applies to jpeg and webp only")
	}
	if FormatJPEG.Ext() != "jpg" || FormatPNG.MIME() != "image/png" {
		t.Fatal("unexpected extension or mime mapping")
	}
}
