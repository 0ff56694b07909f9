package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
)

// PhotoRepository provides PostgreSQL-backed photo and library storage.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new PostgreSQL photo repository.
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `id, library_id, base_image_path, width, height, taken_at, latitude, longitude,
	face_classifier_completed_at, face_classifier_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*database.Photo, error) {
	var p database.Photo
	var takenAt, completedAt sql.NullTime
	var lat, lon sql.NullFloat64
	err := row.Scan(&p.ID, &p.LibraryID, &p.BaseImagePath, &p.Width, &p.Height, &takenAt, &lat, &lon,
		&completedAt, &p.FaceClassifierVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if takenAt.Valid {
		p.TakenAt = &takenAt.Time
	}
	if completedAt.Valid {
		p.FaceClassifierCompletedAt = &completedAt.Time
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return &p, nil
}

// GetPhoto retrieves a photo by ID.
func (r *PhotoRepository) GetPhoto(ctx context.Context, id uuid.UUID) (*database.Photo, error) {
	p, err := scanPhoto(r.pool.QueryRow(ctx, "SELECT "+photoColumns+" FROM photos WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// ListPendingFacePhotos returns photos the face classifier has not completed, oldest first.
func (r *PhotoRepository) ListPendingFacePhotos(ctx context.Context, libraryID *uuid.UUID, limit int) ([]database.Photo, error) {
	query := "SELECT " + photoColumns + ` FROM photos
		WHERE face_classifier_completed_at IS NULL
		  AND ($1::uuid IS NULL OR library_id = $1)
		ORDER BY created_at, id`
	args := []any{libraryID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending photos: %w", err)
	}
	defer rows.Close()

	var photos []database.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// SaveLibrary inserts or updates a library, assigning an ID when missing.
func (r *PhotoRepository) SaveLibrary(ctx context.Context, library *database.Library) error {
	if library.ID == uuid.Nil {
		library.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO libraries (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at
	`, library.ID, library.Name).Scan(&library.CreatedAt)
	if err != nil {
		return fmt.Errorf("save library: %w", err)
	}
	return nil
}

// SavePhoto inserts or updates a photo, assigning an ID when missing.
func (r *PhotoRepository) SavePhoto(ctx context.Context, photo *database.Photo) error {
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO photos (id, library_id, base_image_path, width, height, taken_at, latitude, longitude,
		                    face_classifier_completed_at, face_classifier_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			library_id = EXCLUDED.library_id,
			base_image_path = EXCLUDED.base_image_path,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			taken_at = EXCLUDED.taken_at,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			face_classifier_completed_at = EXCLUDED.face_classifier_completed_at,
			face_classifier_version = EXCLUDED.face_classifier_version,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`,
		photo.ID,
		photo.LibraryID,
		photo.BaseImagePath,
		photo.Width,
		photo.Height,
		photo.TakenAt,
		photo.Latitude,
		photo.Longitude,
		photo.FaceClassifierCompletedAt,
		photo.FaceClassifierVersion,
	).Scan(&photo.CreatedAt, &photo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save photo: %w", err)
	}
	return nil
}
