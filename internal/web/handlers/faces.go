package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/classifier"
	"github.com/kozaktomas/phototag/internal/constants"
	"github.com/kozaktomas/phototag/internal/database"
)

// FaceClassifier runs the face pipeline on stored photos and loose files
type FaceClassifier interface {
	RunOnPhoto(ctx context.Context, photoID uuid.UUID) (*classifier.Result, error)
	RunOnFile(ctx context.Context, path string) (*classifier.Result, error)
}

// FacesHandler serves face classification and similarity endpoints
type FacesHandler struct {
	classifier FaceClassifier
	photoTags  database.PhotoTagReader
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(c FaceClassifier, photoTags database.PhotoTagReader) *FacesHandler {
	return &FacesHandler{classifier: c, photoTags: photoTags}
}

// Classify runs the face classifier on a stored photo and returns its faces
func (h *FacesHandler) Classify(w http.ResponseWriter, r *http.Request) {
	if h.classifier == nil {
		respondError(w, http.StatusServiceUnavailable, "face classifier not available")
		return
	}

	photoID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.classifier.RunOnPhoto(r.Context(), photoID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		slog.Error("classify photo", "photo_id", photoID, "error", err)
		respondError(w, http.StatusInternalServerError, "face classification failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Detect runs detection and embedding on an uploaded image without storing anything
func (h *FacesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if h.classifier == nil {
		respondError(w, http.StatusServiceUnavailable, "face classifier not available")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "phototag-*"+filepath.Ext(header.Filename))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := tmp.Close(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	result, err := h.classifier.RunOnFile(r.Context(), tmp.Name())
	if err != nil {
		slog.Warn("detect faces in upload", "filename", sanitizeForLog(header.Filename), "error", err)
		respondError(w, http.StatusUnprocessableEntity, "face detection failed")
		return
	}
	result.Path = header.Filename

	respondJSON(w, http.StatusOK, result)
}

// SimilarFaceResponse is a face close to the requested one
type SimilarFaceResponse struct {
	PhotoTagID uuid.UUID `json:"photo_tag_id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	TagID      uuid.UUID `json:"tag_id"`
	TagName    string    `json:"tag_name"`
	Distance   float64   `json:"distance"`
}

// Similar returns faces of the same library ordered by embedding distance
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	photoTagID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	limit := limitParam(r, constants.DefaultSimilarLimit, constants.MaxSimilarLimit)

	similar, err := h.photoTags.FindSimilarFaces(r.Context(), photoTagID, limit)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "photo tag not found")
		return
	}
	if err != nil {
		slog.Error("find similar faces", "photo_tag_id", photoTagID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to find similar faces")
		return
	}

	response := make([]SimilarFaceResponse, 0, len(similar))
	for _, sf := range similar {
		response = append(response, SimilarFaceResponse(sf))
	}
	respondJSON(w, http.StatusOK, response)
}
