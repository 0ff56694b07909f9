// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
)

// MockPhotoRepository is a mock implementation of database.PhotoWriter
type MockPhotoRepository struct {
	mu        sync.RWMutex
	libraries map[uuid.UUID]*database.Library
	photos    map[uuid.UUID]*database.Photo

	// Error injection
	GetPhotoError    error
	ListPendingError error
	SaveError        error
}

// NewMockPhotoRepository creates a new mock photo repository
func NewMockPhotoRepository() *MockPhotoRepository {
	return &MockPhotoRepository{
		libraries: make(map[uuid.UUID]*database.Library),
		photos:    make(map[uuid.UUID]*database.Photo),
	}
}

// AddPhoto adds a photo to the mock store, assigning an ID when missing
func (m *MockPhotoRepository) AddPhoto(photo database.Photo) database.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	m.photos[photo.ID] = &photo
	return photo
}

// GetPhoto retrieves a photo by ID
func (m *MockPhotoRepository) GetPhoto(ctx context.Context, id uuid.UUID) (*database.Photo, error) {
	if m.GetPhotoError != nil {
		return nil, m.GetPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPendingFacePhotos returns photos without a face classifier completion
func (m *MockPhotoRepository) ListPendingFacePhotos(ctx context.Context, libraryID *uuid.UUID, limit int) ([]database.Photo, error) {
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Photo
	for _, p := range m.photos {
		if p.FaceClassifierCompletedAt != nil {
			continue
		}
		if libraryID != nil && p.LibraryID != *libraryID {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SaveLibrary stores a library
func (m *MockPhotoRepository) SaveLibrary(ctx context.Context, library *database.Library) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if library.ID == uuid.Nil {
		library.ID = uuid.New()
	}
	cp := *library
	m.libraries[library.ID] = &cp
	return nil
}

// SavePhoto stores a photo
func (m *MockPhotoRepository) SavePhoto(ctx context.Context, photo *database.Photo) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	cp := *photo
	m.photos[photo.ID] = &cp
	return nil
}

// markCompleted stamps the face classifier completion of a photo
func (m *MockPhotoRepository) markCompleted(photoID uuid.UUID, at time.Time, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[photoID]
	if !ok {
		return database.ErrNotFound
	}
	p.FaceClassifierCompletedAt = &at
	p.FaceClassifierVersion = version
	return nil
}

// MockTagRepository is a mock implementation of database.TagRepository
type MockTagRepository struct {
	mu   sync.RWMutex
	tags map[uuid.UUID]*database.Tag

	// Error injection
	GetTagError         error
	GetOrCreateTagError error
	ListTagsError       error

	// Created counts tags created through GetOrCreateTag
	Created int
}

// NewMockTagRepository creates a new mock tag repository
func NewMockTagRepository() *MockTagRepository {
	return &MockTagRepository{tags: make(map[uuid.UUID]*database.Tag)}
}

// AddTag adds a tag to the mock store, assigning an ID when missing
func (m *MockTagRepository) AddTag(tag database.Tag) database.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tag.ID == uuid.Nil {
		tag.ID = uuid.New()
	}
	m.tags[tag.ID] = &tag
	return tag
}

// GetTag retrieves a tag restricted to a library and type
func (m *MockTagRepository) GetTag(ctx context.Context, libraryID, id uuid.UUID, tagType database.TagType) (*database.Tag, error) {
	if m.GetTagError != nil {
		return nil, m.GetTagError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tags[id]
	if !ok || t.LibraryID != libraryID || t.Type != tagType {
		return nil, database.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// GetOrCreateTag returns a tag by identity, creating it if needed
func (m *MockTagRepository) GetOrCreateTag(ctx context.Context, libraryID uuid.UUID, name string, tagType database.TagType, source database.Source) (*database.Tag, error) {
	if m.GetOrCreateTagError != nil {
		return nil, m.GetOrCreateTagError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if t.LibraryID == libraryID && t.Name == name && t.Type == tagType && t.Source == source {
			cp := *t
			return &cp, nil
		}
	}
	t := &database.Tag{
		ID:        uuid.New(),
		LibraryID: libraryID,
		Name:      name,
		Type:      tagType,
		Source:    source,
		CreatedAt: time.Now(),
	}
	m.tags[t.ID] = t
	m.Created++
	cp := *t
	return &cp, nil
}

// ListTags returns the tags of a library ordered by name
func (m *MockTagRepository) ListTags(ctx context.Context, libraryID uuid.UUID, tagType database.TagType) ([]database.Tag, error) {
	if m.ListTagsError != nil {
		return nil, m.ListTagsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.Tag
	for _, t := range m.tags {
		if t.LibraryID != libraryID || (tagType != "" && t.Type != tagType) {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MockTagRepository) lookup(id uuid.UUID) (database.Tag, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tags[id]
	if !ok {
		return database.Tag{}, false
	}
	return *t, true
}

// MockPhotoTagRepository is a mock implementation of database.FaceResultWriter.
// It joins against the photo and tag mocks it was created with.
type MockPhotoTagRepository struct {
	mu        sync.RWMutex
	photoTags []database.PhotoTag
	photos    *MockPhotoRepository
	tags      *MockTagRepository

	// Error injection
	GetPhotoTagsError    error
	GetFaceRecordsError  error
	GetEmbeddingsError   error
	FindSimilarError     error
	ReplaceFaceTagsError error

	// Replaced counts ReplaceFaceTags calls
	Replaced int
}

// NewMockPhotoTagRepository creates a new mock photo-tag repository
func NewMockPhotoTagRepository(photos *MockPhotoRepository, tags *MockTagRepository) *MockPhotoTagRepository {
	return &MockPhotoTagRepository{photos: photos, tags: tags}
}

// AddPhotoTag adds a photo tag to the mock store, assigning an ID when missing
func (m *MockPhotoTagRepository) AddPhotoTag(pt database.PhotoTag) database.PhotoTag {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pt.ID == uuid.Nil {
		pt.ID = uuid.New()
	}
	m.photoTags = append(m.photoTags, pt)
	return pt
}

// GetPhotoTags returns the tags attached to a photo
func (m *MockPhotoTagRepository) GetPhotoTags(ctx context.Context, photoID uuid.UUID) ([]database.PhotoTag, error) {
	if m.GetPhotoTagsError != nil {
		return nil, m.GetPhotoTagsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.PhotoTag
	for _, pt := range m.photoTags {
		if pt.PhotoID != photoID {
			continue
		}
		if t, ok := m.tags.lookup(pt.TagID); ok {
			pt.Tag = &t
		}
		result = append(result, pt)
	}
	return result, nil
}

func (m *MockPhotoTagRepository) isFace(pt database.PhotoTag) (database.Tag, bool) {
	t, ok := m.tags.lookup(pt.TagID)
	return t, ok && t.Type == database.TagTypeFace
}

// GetFaceTagRecords returns the face photo tags of a library
func (m *MockPhotoTagRepository) GetFaceTagRecords(ctx context.Context, libraryID uuid.UUID) ([]database.FaceTagRecord, error) {
	if m.GetFaceRecordsError != nil {
		return nil, m.GetFaceRecordsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.FaceTagRecord
	for _, pt := range m.photoTags {
		if t, ok := m.isFace(pt); ok && t.LibraryID == libraryID {
			result = append(result, database.FaceTagRecord{PhotoTagID: pt.ID, TagID: pt.TagID, ExtraData: pt.ExtraData})
		}
	}
	return result, nil
}

// GetFaceEmbeddings returns all face photo tags with an embedding
func (m *MockPhotoTagRepository) GetFaceEmbeddings(ctx context.Context) ([]database.FaceEmbedding, error) {
	if m.GetEmbeddingsError != nil {
		return nil, m.GetEmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.FaceEmbedding
	for _, pt := range m.photoTags {
		if _, ok := m.isFace(pt); ok && len(pt.Embedding) > 0 {
			result = append(result, database.FaceEmbedding{PhotoTagID: pt.ID, TagID: pt.TagID, Embedding: pt.Embedding})
		}
	}
	return result, nil
}

// FindSimilarFaces returns face photo tags ordered by distance to the given one
func (m *MockPhotoTagRepository) FindSimilarFaces(ctx context.Context, photoTagID uuid.UUID, limit int) ([]database.SimilarFace, error) {
	if m.FindSimilarError != nil {
		return nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var query []float32
	var libraryID uuid.UUID
	found := false
	for _, pt := range m.photoTags {
		if pt.ID == photoTagID {
			query, found = pt.Embedding, true
			if t, ok := m.tags.lookup(pt.TagID); ok {
				libraryID = t.LibraryID
			}
			break
		}
	}
	if !found {
		return nil, database.ErrNotFound
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("photo tag %s has no embedding", photoTagID)
	}

	var result []database.SimilarFace
	for _, pt := range m.photoTags {
		if pt.ID == photoTagID || len(pt.Embedding) != len(query) {
			continue
		}
		t, ok := m.isFace(pt)
		if !ok || t.LibraryID != libraryID {
			continue
		}
		result = append(result, database.SimilarFace{
			PhotoTagID: pt.ID,
			PhotoID:    pt.PhotoID,
			TagID:      pt.TagID,
			TagName:    t.Name,
			Distance:   database.EuclideanDistance(query, pt.Embedding),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Distance < result[j].Distance })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ReplaceFaceTags removes computer face tags of the photo, inserts the new
// ones and stamps completion
func (m *MockPhotoTagRepository) ReplaceFaceTags(ctx context.Context, photoID uuid.UUID, tags []database.PhotoTag, completedAt time.Time, version int) error {
	if m.ReplaceFaceTagsError != nil {
		return m.ReplaceFaceTagsError
	}
	if _, err := m.photos.GetPhoto(ctx, photoID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.photoTags[:0]
	for _, pt := range m.photoTags {
		if _, face := m.isFace(pt); pt.PhotoID == photoID && face && pt.Source == database.SourceComputer {
			continue
		}
		kept = append(kept, pt)
	}
	m.photoTags = kept

	for _, pt := range tags {
		if pt.ID == uuid.Nil {
			pt.ID = uuid.New()
		}
		pt.PhotoID = photoID
		pt.CreatedAt = completedAt
		m.photoTags = append(m.photoTags, pt)
	}
	m.Replaced++

	return m.photos.markCompleted(photoID, completedAt, version)
}

// MockGeoRepository is a mock implementation of database.GeoRepository
type MockGeoRepository struct {
	mu      sync.RWMutex
	regions []database.Region
	cities  []database.City

	ListRegionsError error
	GetCitiesError   error
}

// NewMockGeoRepository creates a new mock geo repository
func NewMockGeoRepository() *MockGeoRepository {
	return &MockGeoRepository{}
}

// SaveRegion stores a region, assigning the next ID when zero
func (m *MockGeoRepository) SaveRegion(ctx context.Context, region *database.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if region.ID == 0 {
		region.ID = len(m.regions) + 1
	}
	m.regions = append(m.regions, *region)
	return nil
}

// SaveCity stores a city, assigning the next ID when zero
func (m *MockGeoRepository) SaveCity(ctx context.Context, city *database.City) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if city.ID == 0 {
		city.ID = len(m.cities) + 1
	}
	m.cities = append(m.cities, *city)
	return nil
}

// ListRegions returns regions ordered by name
func (m *MockGeoRepository) ListRegions(ctx context.Context) ([]database.Region, error) {
	if m.ListRegionsError != nil {
		return nil, m.ListRegionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := append([]database.Region(nil), m.regions...)
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// GetCities returns the cities of a region, most populous first
func (m *MockGeoRepository) GetCities(ctx context.Context, regionID int) ([]database.City, error) {
	if m.GetCitiesError != nil {
		return nil, m.GetCitiesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.City
	for _, c := range m.cities {
		if c.CountryID == regionID {
			result = append(result, c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return population(result[i]) > population(result[j])
	})
	return result, nil
}

func population(c database.City) int {
	if c.Population == nil {
		return -1
	}
	return *c.Population
}

// Store bundles connected mocks for tests that exercise several repositories
type Store struct {
	Photos    *MockPhotoRepository
	Tags      *MockTagRepository
	PhotoTags *MockPhotoTagRepository
	Geo       *MockGeoRepository
}

// NewStore creates a connected set of mock repositories
func NewStore() *Store {
	photos := NewMockPhotoRepository()
	tags := NewMockTagRepository()
	return &Store{
		Photos:    photos,
		Tags:      tags,
		PhotoTags: NewMockPhotoTagRepository(photos, tags),
		Geo:       NewMockGeoRepository(),
	}
}

// Compile-time interface checks
var (
	_ database.PhotoWriter      = (*MockPhotoRepository)(nil)
	_ database.TagRepository    = (*MockTagRepository)(nil)
	_ database.FaceResultWriter = (*MockPhotoTagRepository)(nil)
	_ database.GeoRepository    = (*MockGeoRepository)(nil)
)
