package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PhotoReader provides read-only access to photos
type PhotoReader interface {
	// GetPhoto retrieves a photo by ID, returns ErrNotFound if it does not exist
	GetPhoto(ctx context.Context, id uuid.UUID) (*Photo, error)
	// ListPendingFacePhotos returns photos the face classifier has not completed.
	// A nil libraryID matches every library; limit <= 0 means no limit.
	ListPendingFacePhotos(ctx context.Context, libraryID *uuid.UUID, limit int) ([]Photo, error)
}

// PhotoWriter provides write access to photos and libraries
type PhotoWriter interface {
	PhotoReader

	// SaveLibrary inserts or updates a library
	SaveLibrary(ctx context.Context, library *Library) error
	// SavePhoto inserts or updates a photo
	SavePhoto(ctx context.Context, photo *Photo) error
}

// TagRepository provides access to tags
type TagRepository interface {
	// GetTag retrieves a tag by ID restricted to a library and type.
	// Returns ErrNotFound if no such tag exists.
	GetTag(ctx context.Context, libraryID, id uuid.UUID, tagType TagType) (*Tag, error)
	// GetOrCreateTag returns the tag with the given identity, creating it if needed
	GetOrCreateTag(ctx context.Context, libraryID uuid.UUID, name string, tagType TagType, source Source) (*Tag, error)
	// ListTags returns all tags of a library, optionally filtered by type (empty = all)
	ListTags(ctx context.Context, libraryID uuid.UUID, tagType TagType) ([]Tag, error)
}

// PhotoTagReader provides read-only access to photo-tag associations
type PhotoTagReader interface {
	// GetPhotoTags returns all tags attached to a photo, with Tag populated
	GetPhotoTags(ctx context.Context, photoID uuid.UUID) ([]PhotoTag, error)
	// GetFaceTagRecords returns every face PhotoTag of a library with its raw extra data
	GetFaceTagRecords(ctx context.Context, libraryID uuid.UUID) ([]FaceTagRecord, error)
	// GetFaceEmbeddings returns all face PhotoTags that carry an embedding
	GetFaceEmbeddings(ctx context.Context) ([]FaceEmbedding, error)
	// FindSimilarFaces returns face PhotoTags ordered by L2 distance to the given one
	FindSimilarFaces(ctx context.Context, photoTagID uuid.UUID, limit int) ([]SimilarFace, error)
}

// FaceResultWriter persists face classifier results
type FaceResultWriter interface {
	PhotoTagReader

	// ReplaceFaceTags clears the computer-sourced face tags of a photo, inserts the
	// given ones and marks the face classifier completed, all in one transaction.
	ReplaceFaceTags(ctx context.Context, photoID uuid.UUID, tags []PhotoTag, completedAt time.Time, version int) error
}

// GeoRepository provides access to world borders and cities
type GeoRepository interface {
	// SaveRegion inserts or updates a world border, assigning ID when zero
	SaveRegion(ctx context.Context, region *Region) error
	// SaveCity inserts or updates a city, assigning ID when zero
	SaveCity(ctx context.Context, city *City) error
	// ListRegions returns all world borders ordered by name
	ListRegions(ctx context.Context) ([]Region, error)
	// GetCities returns the cities of a region ordered by population (largest first)
	GetCities(ctx context.Context, regionID int) ([]City, error)
}
