package database

import (
	"context"
	"errors"
)

var (
	postgresPhotoWriter      func() PhotoWriter
	postgresTagRepository    func() TagRepository
	postgresFaceResultWriter func() FaceResultWriter
	postgresGeoRepository    func() GeoRepository
	postgresInitialized      bool
)

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	photos func() PhotoWriter,
	tags func() TagRepository,
	faces func() FaceResultWriter,
	geo func() GeoRepository,
) {
	postgresPhotoWriter = photos
	postgresTagRepository = tags
	postgresFaceResultWriter = faces
	postgresGeoRepository = geo
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetPhotoWriter returns a PhotoWriter from the PostgreSQL backend
func GetPhotoWriter(ctx context.Context) (PhotoWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresPhotoWriter == nil {
		return nil, errors.New("PostgreSQL photo writer not registered")
	}
	return postgresPhotoWriter(), nil
}

// GetTagRepository returns a TagRepository from the PostgreSQL backend
func GetTagRepository(ctx context.Context) (TagRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresTagRepository == nil {
		return nil, errors.New("PostgreSQL tag repository not registered")
	}
	return postgresTagRepository(), nil
}

// GetFaceResultWriter returns a FaceResultWriter from the PostgreSQL backend
func GetFaceResultWriter(ctx context.Context) (FaceResultWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresFaceResultWriter == nil {
		return nil, errors.New("PostgreSQL face result writer not registered")
	}
	return postgresFaceResultWriter(), nil
}

// GetGeoRepository returns a GeoRepository from the PostgreSQL backend
func GetGeoRepository(ctx context.Context) (GeoRepository, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresGeoRepository == nil {
		return nil, errors.New("PostgreSQL geo repository not registered")
	}
	return postgresGeoRepository(), nil
}
