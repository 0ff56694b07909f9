package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kozaktomas/phototag/internal/config"
)

// strides of the RetinaFace det_10g feature maps
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per pixel at each stride
const anchorsPerStride = 2

// candidateThreshold drops anchors before NMS; callers filter by their own
// minimum score afterwards.
const candidateThreshold = 0.5

// detection is a decoded anchor box in original image pixels.
type detection struct {
	bbox       [4]float32 // x1, y1, x2, y2
	confidence float32
}

// RetinaFace runs the det_10g face detector through ONNX Runtime.
type RetinaFace struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	inputW        int
	inputH        int
	mean          float32
	std           float32
	nmsThreshold  float32
}

// NewRetinaFace loads the detector model at modelPath.
func NewRetinaFace(modelPath string, spec config.DetectorModel) (*RetinaFace, error) {
	inputW, inputH := spec.InputWidth, spec.InputHeight

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Outputs have no batch dimension: scores [N,1], boxes [N,4], landmarks [N,10]
	// per stride, where N = (inputW/stride)*(inputH/stride)*anchorsPerStride.
	widths := []int64{1, 4, 10}
	outputTensors := make([]*ort.Tensor[float32], len(spec.OutputNames))
	outputValues := make([]ort.Value, len(spec.OutputNames))
	for i := range spec.OutputNames {
		stride := strides[i%len(strides)]
		n := int64((inputW / stride) * (inputH / stride) * anchorsPerStride)
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(n, widths[i/len(strides)]))
		if err != nil {
			for j := range i {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.OutputNames[i], err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{spec.InputName},
		spec.OutputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &RetinaFace{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		inputW:        inputW,
		inputH:        inputH,
		mean:          spec.Mean,
		std:           spec.Std,
		nmsThreshold:  spec.NMSThreshold,
	}, nil
}

// Detect implements FaceDetector. Faces are ordered by confidence, highest first.
func (d *RetinaFace) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	input := imageToTensor(img, d.inputW, d.inputH, d.mean, d.std, LayoutNCHW)

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	outputs := make([][]float32, len(d.outputTensors))
	for i, t := range d.outputTensors {
		outputs[i] = t.GetData()
	}

	dets := decodeDetections(outputs, d.inputW, d.inputH, b.Dx(), b.Dy(), candidateThreshold)
	dets = nms(dets, d.nmsThreshold)

	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		if f, ok := toFace(det); ok {
			faces = append(faces, f)
		}
	}
	return faces, nil
}

// Close releases the ONNX session and tensors.
func (d *RetinaFace) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// decodeDetections decodes anchor-based outputs ordered as scores, boxes and
// landmarks for each stride.
func decodeDetections(outputs [][]float32, inputW, inputH, origW, origH int, threshold float32) []detection {
	var dets []detection

	scaleW := float32(origW) / float32(inputW)
	scaleH := float32(origH) / float32(inputH)

	for si, stride := range strides {
		scores := outputs[si]
		boxes := outputs[si+len(strides)]

		fmW := inputW / stride
		fmH := inputH / stride
		st := float32(stride)

		idx := 0
		for cy := range fmH {
			for cx := range fmW {
				for range anchorsPerStride {
					if idx >= len(scores) || idx*4+3 >= len(boxes) {
						break
					}
					if score := scores[idx]; score >= threshold {
						ax := float32(cx) * st
						ay := float32(cy) * st
						// Boxes are distances from the anchor to each edge in stride units
						dets = append(dets, detection{
							bbox: [4]float32{
								clampF((ax-boxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
								clampF((ay-boxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
								clampF((ax+boxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
								clampF((ay+boxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
							},
							confidence: score,
						})
					}
					idx++
				}
			}
		}
	}
	return dets
}

// toFace converts corner coordinates to an x, y, w, h box.
func toFace(d detection) (Face, bool) {
	x := int(math.Round(float64(d.bbox[0])))
	y := int(math.Round(float64(d.bbox[1])))
	w := int(math.Round(float64(d.bbox[2]))) - x
	h := int(math.Round(float64(d.bbox[3]))) - y
	if w <= 0 || h <= 0 {
		return Face{}, false
	}
	return Face{Box: [4]int{x, y, w, h}, Confidence: float64(d.confidence)}, true
}

// nms performs Non-Maximum Suppression, keeping the highest scoring boxes.
func nms(dets []detection, iouThreshold float32) []detection {
	if len(dets) == 0 {
		return dets
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].confidence > dets[j].confidence
	})

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}
	for i := range dets {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if keep[j] && iou(dets[i].bbox, dets[j].bbox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []detection
	for i, d := range dets {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	intersection := max(0, x2-x1) * max(0, y2-y1)
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
