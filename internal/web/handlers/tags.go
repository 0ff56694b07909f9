package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/facematch"
)

// TagsHandler serves library tags
type TagsHandler struct {
	tags database.TagRepository
}

// NewTagsHandler creates a new tags handler
func NewTagsHandler(tags database.TagRepository) *TagsHandler {
	return &TagsHandler{tags: tags}
}

// TagResponse is a library tag
type TagResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Source string    `json:"source"`
}

// List returns tags of a library, filtered by ?type= and matched against ?q=
// ignoring case and diacritics
func (h *TagsHandler) List(w http.ResponseWriter, r *http.Request) {
	libraryID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	tagType := database.TagType(r.URL.Query().Get("type"))
	if tagType != "" && !tagType.Valid() {
		respondError(w, http.StatusBadRequest, "invalid tag type")
		return
	}
	query := r.URL.Query().Get("q")

	tags, err := h.tags.ListTags(r.Context(), libraryID, tagType)
	if err != nil {
		slog.Error("list tags", "library_id", libraryID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}

	response := make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		if !facematch.MatchesQuery(t.Name, query) {
			continue
		}
		response = append(response, TagResponse{
			ID:     t.ID,
			Name:   t.Name,
			Type:   string(t.Type),
			Source: string(t.Source),
		})
	}
	respondJSON(w, http.StatusOK, response)
}
