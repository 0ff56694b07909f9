package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestMarginBox(t *testing.T) {
	tests := []struct {
		name           string
		box            [4]int
		margin         float64
		w, h           int
		x1, y1, x2, y2 int
	}{
		{"centred", [4]int{100, 100, 50, 40}, 0.3, 400, 300, 85, 88, 165, 152},
		{"clamped top-left", [4]int{5, 5, 50, 50}, 0.3, 400, 300, 0, 0, 70, 70},
		{"clamped bottom-right", [4]int{360, 260, 40, 40}, 0.3, 400, 300, 348, 248, 400, 300},
		{"no margin", [4]int{10, 20, 30, 40}, 0, 100, 100, 10, 20, 40, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x1, y1, x2, y2 := MarginBox(tt.box, tt.margin, tt.w, tt.h)
			if x1 != tt.x1 || y1 != tt.y1 || x2 != tt.x2 || y2 != tt.y2 {
				t.Errorf("MarginBox() = (%d,%d,%d,%d), want (%d,%d,%d,%d)",
					x1, y1, x2, y2, tt.x1, tt.y1, tt.x2, tt.y2)
			}
		})
	}
}

func TestCropFace(t *testing.T) {
	img := solidImage(200, 100, color.White)

	crop, err := CropFace(img, [4]int{50, 20, 40, 40}, 0.3)
	if err != nil {
		t.Fatalf("CropFace() error = %v", err)
	}
	// 50-12=38 .. 50+40+12=102, 20-12=8 .. 20+40+12=72
	if got := crop.Bounds().Dx(); got != 64 {
		t.Errorf("crop width = %d, want 64", got)
	}
	if got := crop.Bounds().Dy(); got != 64 {
		t.Errorf("crop height = %d, want 64", got)
	}
}

func TestCropFace_Invalid(t *testing.T) {
	img := solidImage(100, 100, color.Black)

	tests := []struct {
		name string
		box  [4]int
	}{
		{"zero width", [4]int{10, 10, 0, 20}},
		{"negative height", [4]int{10, 10, 20, -5}},
		{"outside image", [4]int{150, 150, 10, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CropFace(img, tt.box, 0.3); !errors.Is(err, ErrInvalidFace) {
				t.Errorf("CropFace() error = %v, want ErrInvalidFace", err)
			}
		})
	}
}

func TestImageToTensor_Layouts(t *testing.T) {
	img := solidImage(8, 8, color.NRGBA{R: 255, G: 127, B: 0, A: 255})

	chw := imageToTensor(img, 4, 2, 127.5, 127.5, LayoutNCHW)
	if len(chw) != 3*4*2 {
		t.Fatalf("tensor length = %d, want 24", len(chw))
	}
	// First plane is red: (255-127.5)/127.5 = 1
	if chw[0] != 1 {
		t.Errorf("CHW red = %v, want 1", chw[0])
	}
	// Third plane is blue: (0-127.5)/127.5 = -1
	if chw[2*8] != -1 {
		t.Errorf("CHW blue = %v, want -1", chw[2*8])
	}

	hwc := imageToTensor(img, 4, 2, 0, 255, LayoutNHWC)
	if hwc[0] != 1 || hwc[2] != 0 {
		t.Errorf("HWC first pixel = %v, want [1 ~0.5 0]", hwc[:3])
	}
	if hwc[1] < 0.49 || hwc[1] > 0.5 {
		t.Errorf("HWC green = %v, want about 0.498", hwc[1])
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")

	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(30, 20, color.White)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if _, err := LoadImage(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDecodeImage_Garbage(t *testing.T) {
	if _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("expected error decoding garbage")
	}
}
