package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// TagType is the category of a tag, stored as a single character
type TagType string

const (
	TagTypeLocation TagType = "L"
	TagTypeObject   TagType = "O"
	TagTypeFace     TagType = "F"
	TagTypeColor    TagType = "C"
	TagTypeStyle    TagType = "S"
	TagTypeGeneric  TagType = "G"
)

// Valid reports whether t is one of the known tag types.
func (t TagType) Valid() bool {
	switch t {
	case TagTypeLocation, TagTypeObject, TagTypeFace, TagTypeColor, TagTypeStyle, TagTypeGeneric:
		return true
	}
	return false
}

// String returns the human readable name of the tag type.
func (t TagType) String() string {
	switch t {
	case TagTypeLocation:
		return "Location"
	case TagTypeObject:
		return "Object"
	case TagTypeFace:
		return "Face"
	case TagTypeColor:
		return "Color"
	case TagTypeStyle:
		return "Style"
	case TagTypeGeneric:
		return "Generic"
	}
	return "Unknown"
}

// Source says who attached a tag: a human or the computer (a classifier)
type Source string

const (
	SourceHuman    Source = "H"
	SourceComputer Source = "C"
)

// Library groups photos and tags; face matching never crosses libraries.
type Library struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Photo represents a photo record with the dimensions of its base file
type Photo struct {
	ID            uuid.UUID
	LibraryID     uuid.UUID
	BaseImagePath string
	Width         int // base file width in pixels, 0 if unknown
	Height        int // base file height in pixels, 0 if unknown
	TakenAt       *time.Time
	Latitude      *float64
	Longitude     *float64

	FaceClassifierCompletedAt *time.Time
	FaceClassifierVersion     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag is a named label attachable to photos
type Tag struct {
	ID        uuid.UUID
	LibraryID uuid.UUID
	Name      string
	Type      TagType
	Source    Source
	ParentID  *uuid.UUID
	CreatedAt time.Time
}

// PhotoTag links a photo to a tag. Position and size are normalized to [0,1]
// relative to the photo dimensions; position is the box centre.
type PhotoTag struct {
	ID                    uuid.UUID
	PhotoID               uuid.UUID
	TagID                 uuid.UUID
	Source                Source
	Confidence            float64
	Significance          float64
	PositionX             float64
	PositionY             float64
	SizeX                 float64
	SizeY                 float64
	ModelVersion          int
	RetrainedModelVersion int64
	ExtraData             string
	Embedding             []float32 // mirrors facenet_embedding in ExtraData, nil when absent
	Verified              bool
	Hidden                bool
	CreatedAt             time.Time

	// Populated by joins, not stored on the row
	Tag *Tag
}

// FaceEmbedding is a stored face embedding with the tag it belongs to.
type FaceEmbedding struct {
	PhotoTagID uuid.UUID
	TagID      uuid.UUID
	Embedding  []float32
}

// FaceTagRecord is a face PhotoTag as read for a linear-scan match: the raw
// extra data is decoded by the caller so malformed rows can be skipped.
type FaceTagRecord struct {
	PhotoTagID uuid.UUID
	TagID      uuid.UUID
	ExtraData  string
}

// SimilarFace is a face PhotoTag returned by a vector similarity query.
type SimilarFace struct {
	PhotoTagID uuid.UUID
	PhotoID    uuid.UUID
	TagID      uuid.UUID
	TagName    string
	Distance   float64
}

// Region is an administrative world border
type Region struct {
	ID         int
	Name       string
	Area       int
	Pop2005    int
	FIPS       string
	ISO2       string
	ISO3       string
	UN         int
	RegionCode int
	Subregion  int
	Lon        float64
	Lat        float64
	MPoly      MultiPolygon
}

// City is a populated place belonging to a country region
type City struct {
	ID         int
	Name       string
	Timezone   string
	Lon        float64
	Lat        float64
	Population *int
	CountryID  int
}
