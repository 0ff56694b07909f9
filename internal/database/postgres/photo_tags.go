package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/phototag/internal/database"
)

// PhotoTagRepository provides PostgreSQL-backed photo-tag storage and face
// result persistence.
type PhotoTagRepository struct {
	pool *Pool
}

// NewPhotoTagRepository creates a new PostgreSQL photo-tag repository.
func NewPhotoTagRepository(pool *Pool) *PhotoTagRepository {
	return &PhotoTagRepository{pool: pool}
}

// nullableVector returns a pgvector value, or nil for a missing embedding.
func nullableVector(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// GetPhotoTags returns all tags attached to a photo with Tag populated.
func (r *PhotoTagRepository) GetPhotoTags(ctx context.Context, photoID uuid.UUID) ([]database.PhotoTag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pt.id, pt.photo_id, pt.tag_id, pt.source, pt.confidence, pt.significance,
		       COALESCE(pt.position_x, 0), COALESCE(pt.position_y, 0), COALESCE(pt.size_x, 0), COALESCE(pt.size_y, 0),
		       pt.model_version, pt.retrained_model_version, pt.extra_data, pt.embedding::text,
		       pt.verified, pt.hidden, pt.created_at,
		       t.id, t.library_id, t.name, t.type, t.source, t.parent_id, t.created_at
		FROM photo_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.photo_id = $1
		ORDER BY t.type, pt.position_x NULLS LAST, pt.id
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query photo tags: %w", err)
	}
	defer rows.Close()

	var result []database.PhotoTag
	for rows.Next() {
		var pt database.PhotoTag
		var tag database.Tag
		var source, tagType, tagSource string
		var embedding sql.NullString
		var parentID uuid.NullUUID
		if err := rows.Scan(
			&pt.ID, &pt.PhotoID, &pt.TagID, &source, &pt.Confidence, &pt.Significance,
			&pt.PositionX, &pt.PositionY, &pt.SizeX, &pt.SizeY,
			&pt.ModelVersion, &pt.RetrainedModelVersion, &pt.ExtraData, &embedding,
			&pt.Verified, &pt.Hidden, &pt.CreatedAt,
			&tag.ID, &tag.LibraryID, &tag.Name, &tagType, &tagSource, &parentID, &tag.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan photo tag: %w", err)
		}
		pt.Source = database.Source(source)
		tag.Type = database.TagType(tagType)
		tag.Source = database.Source(tagSource)
		if parentID.Valid {
			tag.ParentID = &parentID.UUID
		}
		if embedding.Valid {
			var vec pgvector.Vector
			if err := vec.Scan(embedding.String); err != nil {
				return nil, fmt.Errorf("parse embedding: %w", err)
			}
			pt.Embedding = vec.Slice()
		}
		pt.Tag = &tag
		result = append(result, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photo tags: %w", err)
	}
	return result, nil
}

// GetFaceTagRecords returns every face PhotoTag of a library with its raw extra data.
func (r *PhotoTagRepository) GetFaceTagRecords(ctx context.Context, libraryID uuid.UUID) ([]database.FaceTagRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pt.id, pt.tag_id, pt.extra_data
		FROM photo_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE t.library_id = $1 AND t.type = 'F'
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("query face tags: %w", err)
	}
	defer rows.Close()

	var result []database.FaceTagRecord
	for rows.Next() {
		var rec database.FaceTagRecord
		if err := rows.Scan(&rec.PhotoTagID, &rec.TagID, &rec.ExtraData); err != nil {
			return nil, fmt.Errorf("scan face tag: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face tags: %w", err)
	}
	return result, nil
}

// GetFaceEmbeddings returns all face PhotoTags that carry an embedding.
func (r *PhotoTagRepository) GetFaceEmbeddings(ctx context.Context) ([]database.FaceEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pt.id, pt.tag_id, pt.embedding
		FROM photo_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE t.type = 'F' AND pt.embedding IS NOT NULL
		ORDER BY pt.created_at, pt.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query face embeddings: %w", err)
	}
	defer rows.Close()

	var result []database.FaceEmbedding
	for rows.Next() {
		var fe database.FaceEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&fe.PhotoTagID, &fe.TagID, &vec); err != nil {
			return nil, fmt.Errorf("scan face embedding: %w", err)
		}
		fe.Embedding = vec.Slice()
		result = append(result, fe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face embeddings: %w", err)
	}
	return result, nil
}

// FindSimilarFaces returns face PhotoTags of the same library ordered by L2
// distance to the given face.
func (r *PhotoTagRepository) FindSimilarFaces(ctx context.Context, photoTagID uuid.UUID, limit int) ([]database.SimilarFace, error) {
	var hasEmbedding bool
	err := r.pool.QueryRow(ctx, "SELECT embedding IS NOT NULL FROM photo_tags WHERE id = $1", photoTagID).Scan(&hasEmbedding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo tag: %w", err)
	}
	if !hasEmbedding {
		return nil, fmt.Errorf("photo tag %s has no embedding", photoTagID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT pt.id, pt.photo_id, pt.tag_id, t.name, pt.embedding <-> q.embedding AS distance
		FROM photo_tags q
		JOIN tags qt ON qt.id = q.tag_id
		JOIN photo_tags pt ON pt.id <> q.id AND pt.embedding IS NOT NULL
		JOIN tags t ON t.id = pt.tag_id AND t.type = 'F' AND t.library_id = qt.library_id
		WHERE q.id = $1
		ORDER BY distance
		LIMIT $2
	`, photoTagID, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	var result []database.SimilarFace
	for rows.Next() {
		var sf database.SimilarFace
		if err := rows.Scan(&sf.PhotoTagID, &sf.PhotoID, &sf.TagID, &sf.TagName, &sf.Distance); err != nil {
			return nil, fmt.Errorf("scan similar face: %w", err)
		}
		result = append(result, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar faces: %w", err)
	}
	return result, nil
}

// ReplaceFaceTags clears the computer face tags of a photo, inserts the given
// ones and marks the face classifier completed in a single transaction.
func (r *PhotoTagRepository) ReplaceFaceTags(ctx context.Context, photoID uuid.UUID, tags []database.PhotoTag, completedAt time.Time, version int) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM photo_tags pt
		USING tags t
		WHERE pt.tag_id = t.id AND pt.photo_id = $1 AND pt.source = 'C' AND t.type = 'F'
	`, photoID); err != nil {
		return fmt.Errorf("clear face tags: %w", err)
	}

	for i := range tags {
		pt := &tags[i]
		if pt.ID == uuid.Nil {
			pt.ID = uuid.New()
		}
		pt.PhotoID = photoID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO photo_tags (id, photo_id, tag_id, source, confidence, significance,
			                        position_x, position_y, size_x, size_y,
			                        model_version, retrained_model_version, extra_data, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`,
			pt.ID,
			photoID,
			pt.TagID,
			string(pt.Source),
			pt.Confidence,
			pt.Significance,
			pt.PositionX,
			pt.PositionY,
			pt.SizeX,
			pt.SizeY,
			pt.ModelVersion,
			pt.RetrainedModelVersion,
			pt.ExtraData,
			nullableVector(pt.Embedding),
			completedAt,
		)
		if err != nil {
			return fmt.Errorf("insert face tag %d: %w", i, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE photos
		SET face_classifier_completed_at = $2, face_classifier_version = $3, updated_at = NOW()
		WHERE id = $1
	`, photoID, completedAt, version)
	if err != nil {
		return fmt.Errorf("mark face classifier completed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return database.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
