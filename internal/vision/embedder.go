package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kozaktomas/phototag/internal/config"
)

// FaceNet extracts face embeddings through ONNX Runtime. Embeddings are
// returned unnormalised, distances between them are raw Euclidean.
type FaceNet struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	spec         config.EmbedderModel
}

// NewFaceNet loads the embedding model at modelPath.
func NewFaceNet(modelPath string, spec config.EmbedderModel) (*FaceNet, error) {
	w, h := int64(spec.InputWidth), int64(spec.InputHeight)
	shape := ort.NewShape(1, 3, h, w)
	if spec.Layout == LayoutNHWC {
		shape = ort.NewShape(1, h, w, 3)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(spec.Dim)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{spec.InputName},
		[]string{spec.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &FaceNet{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		spec:         spec,
	}, nil
}

// Embed implements FaceEmbedder.
func (e *FaceNet) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := face.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty crop", ErrInvalidFace)
	}
	input := imageToTensor(face, e.spec.InputWidth, e.spec.InputHeight, e.spec.Mean, e.spec.Std, e.spec.Layout)

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputTensor.GetData(), input)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	embedding := make([]float32, e.spec.Dim)
	copy(embedding, e.outputTensor.GetData())
	return embedding, nil
}

// Close releases the ONNX session and tensors.
func (e *FaceNet) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}
