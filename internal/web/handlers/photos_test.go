package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/database/mock"
)

func TestPhotosHandler_GetTags(t *testing.T) {
	store := mock.NewStore()
	libraryID := uuid.New()
	photo := store.Photos.AddPhoto(database.Photo{LibraryID: libraryID, BaseImagePath: "/a.jpg"})
	alice := store.Tags.AddTag(database.Tag{LibraryID: libraryID, Name: "Alice", Type: database.TagTypeFace, Source: database.SourceHuman})
	store.PhotoTags.AddPhotoTag(database.PhotoTag{
		PhotoID: photo.ID, TagID: alice.ID, Source: database.SourceComputer,
		Confidence: 0.995, PositionX: 0.35, PositionY: 0.4, SizeX: 0.3, SizeY: 0.4,
	})

	handler := NewPhotosHandler(store.PhotoTags)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/photos/"+photo.ID.String()+"/tags", nil),
		map[string]string{"id": photo.ID.String()},
	)
	recorder := httptest.NewRecorder()
	handler.GetTags(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var tags []PhotoTagResponse
	decodeBody(t, recorder, &tags)
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
	if tags[0].TagName != "Alice" || tags[0].TagType != "F" {
		t.Errorf("expected Alice/F, got %s/%s", tags[0].TagName, tags[0].TagType)
	}
	if tags[0].PositionX != 0.35 || tags[0].SizeY != 0.4 {
		t.Errorf("unexpected geometry: %+v", tags[0])
	}
}

func TestPhotosHandler_GetTagsEmpty(t *testing.T) {
	store := mock.NewStore()
	handler := NewPhotosHandler(store.PhotoTags)

	id := uuid.NewString()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id})
	recorder := httptest.NewRecorder()
	handler.GetTags(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if recorder.Body.String() != "[]\n" {
		t.Errorf("expected empty array, got %q", recorder.Body.String())
	}
}

func TestPhotosHandler_GetTagsErrors(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		repoErr    error
		wantStatus int
	}{
		{"InvalidID", "not-a-uuid", nil, http.StatusBadRequest},
		{"RepositoryError", uuid.NewString(), errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mock.NewStore()
			store.PhotoTags.GetPhotoTagsError = tc.repoErr
			handler := NewPhotosHandler(store.PhotoTags)

			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tc.id})
			recorder := httptest.NewRecorder()
			handler.GetTags(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
		})
	}
}
