package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/classifier"
	"github.com/kozaktomas/phototag/internal/database"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody unmarshals a recorder body into v
func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body %q)", err, recorder.Body.String())
	}
}

// fakeClassifier records calls and returns canned results
type fakeClassifier struct {
	photoResult *classifier.Result
	fileResult  *classifier.Result
	err         error

	photoIDs []uuid.UUID
	paths    []string
}

func (f *fakeClassifier) RunOnPhoto(ctx context.Context, photoID uuid.UUID) (*classifier.Result, error) {
	f.photoIDs = append(f.photoIDs, photoID)
	if f.err != nil {
		return nil, f.err
	}
	return f.photoResult, nil
}

func (f *fakeClassifier) RunOnFile(ctx context.Context, path string) (*classifier.Result, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.fileResult
	res.Path = path
	return &res, nil
}

func faceEmbedding(v float32) []float32 {
	emb := make([]float32, database.FaceEmbeddingDim)
	for i := range emb {
		emb[i] = v
	}
	return emb
}
