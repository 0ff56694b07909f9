package facematch

import (
	"fmt"
)

// Position is a face box normalized to the photo: X, Y is the box centre and
// W, H its size, all fractions of the photo width and height in [0,1].
type Position struct {
	X, Y, W, H float64
}

// NormalizeBox converts a pixel box (x, y, w, h) to a centre-based Position.
func NormalizeBox(box [4]int, width, height int) (Position, error) {
	if width <= 0 || height <= 0 {
		return Position{}, fmt.Errorf("invalid photo dimensions %dx%d", width, height)
	}
	fw, fh := float64(width), float64(height)
	x, y, w, h := float64(box[0]), float64(box[1]), float64(box[2]), float64(box[3])

	return Position{
		X: clamp01((x + w/2) / fw),
		Y: clamp01((y + h/2) / fh),
		W: clamp01(w / fw),
		H: clamp01(h / fh),
	}, nil
}

// Corners returns the pixel corners x1, y1, x2, y2 of p in a width x height photo.
func (p Position) Corners(width, height int) (x1, y1, x2, y2 float64) {
	fw, fh := float64(width), float64(height)
	x1 = (p.X - p.W/2) * fw
	y1 = (p.Y - p.H/2) * fh
	x2 = (p.X + p.W/2) * fw
	y2 = (p.Y + p.H/2) * fh
	return x1, y1, x2, y2
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
