package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
)

// PhotosHandler serves the tags attached to photos
type PhotosHandler struct {
	photoTags database.PhotoTagReader
}

// NewPhotosHandler creates a new photos handler
func NewPhotosHandler(photoTags database.PhotoTagReader) *PhotosHandler {
	return &PhotosHandler{photoTags: photoTags}
}

// PhotoTagResponse is one tag attached to a photo
type PhotoTagResponse struct {
	ID           uuid.UUID `json:"id"`
	TagID        uuid.UUID `json:"tag_id"`
	TagName      string    `json:"tag_name"`
	TagType      string    `json:"tag_type"`
	Source       string    `json:"source"`
	Confidence   float64   `json:"confidence"`
	Significance float64   `json:"significance"`
	PositionX    float64   `json:"position_x"`
	PositionY    float64   `json:"position_y"`
	SizeX        float64   `json:"size_x"`
	SizeY        float64   `json:"size_y"`
	ModelVersion int       `json:"model_version"`
	Verified     bool      `json:"verified"`
	Hidden       bool      `json:"hidden"`
}

// GetTags returns all tags of a photo with their names
func (h *PhotosHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	photoID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	tags, err := h.photoTags.GetPhotoTags(r.Context(), photoID)
	if err != nil {
		slog.Error("get photo tags", "photo_id", photoID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get photo tags")
		return
	}

	response := make([]PhotoTagResponse, 0, len(tags))
	for _, pt := range tags {
		item := PhotoTagResponse{
			ID:           pt.ID,
			TagID:        pt.TagID,
			Source:       string(pt.Source),
			Confidence:   pt.Confidence,
			Significance: pt.Significance,
			PositionX:    pt.PositionX,
			PositionY:    pt.PositionY,
			SizeX:        pt.SizeX,
			SizeY:        pt.SizeY,
			ModelVersion: pt.ModelVersion,
			Verified:     pt.Verified,
			Hidden:       pt.Hidden,
		}
		if pt.Tag != nil {
			item.TagName = pt.Tag.Name
			item.TagType = string(pt.Tag.Type)
		}
		response = append(response, item)
	}

	respondJSON(w, http.StatusOK, response)
}
