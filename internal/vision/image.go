package vision

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	// Extra decoders for formats imaging does not register itself
	_ "golang.org/x/image/webp"
)

// ErrInvalidFace is returned when a box does not describe a croppable region.
var ErrInvalidFace = errors.New("invalid face region")

// LoadImage opens an image file and applies its EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes an image stream and applies its EXIF orientation.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// MarginBox grows box (x, y, w, h) by margin times its size on every side,
// clamped to a width x height image. Returns the corners x1, y1, x2, y2.
func MarginBox(box [4]int, margin float64, width, height int) (x1, y1, x2, y2 int) {
	x, y, w, h := box[0], box[1], box[2], box[3]
	dx := int(float64(w) * margin)
	dy := int(float64(h) * margin)

	x1 = max(x-dx, 0)
	y1 = max(y-dy, 0)
	x2 = min(x+w+dx, width)
	y2 = min(y+h+dy, height)
	return x1, y1, x2, y2
}

// CropFace cuts the face box plus margin out of img.
func CropFace(img image.Image, box [4]int, margin float64) (image.Image, error) {
	if box[2] <= 0 || box[3] <= 0 {
		return nil, fmt.Errorf("%w: box %v has no area", ErrInvalidFace, box)
	}
	b := img.Bounds()
	x1, y1, x2, y2 := MarginBox(box, margin, b.Dx(), b.Dy())
	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("%w: box %v outside %dx%d image", ErrInvalidFace, box, b.Dx(), b.Dy())
	}
	rect := image.Rect(x1, y1, x2, y2).Add(b.Min)
	return imaging.Crop(img, rect), nil
}

// Layouts for model input tensors
const (
	LayoutNCHW = "NCHW"
	LayoutNHWC = "NHWC"
)

// imageToTensor resizes img to w x h and converts it to float32 RGB with
//
//	pixel = (pixel - mean) / std
func imageToTensor(img image.Image, w, h int, mean, std float32, layout string) []float32 {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([]float32, 3*w*h)
	plane := w * h
	for y := range h {
		for x := range w {
			off := dst.PixOffset(x, y)
			px := dst.Pix[off : off+3 : off+3]
			idx := y*w + x
			for c := range 3 {
				v := (float32(px[c]) - mean) / std
				if layout == LayoutNHWC {
					data[idx*3+c] = v
				} else {
					data[c*plane+idx] = v
				}
			}
		}
	}
	return data
}
