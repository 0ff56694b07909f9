package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/phototag/internal/database"
)

// TagRepository provides PostgreSQL-backed tag storage.
type TagRepository struct {
	pool *Pool
}

// NewTagRepository creates a new PostgreSQL tag repository.
func NewTagRepository(pool *Pool) *TagRepository {
	return &TagRepository{pool: pool}
}

const tagColumns = "id, library_id, name, type, source, parent_id, created_at"

func scanTag(row rowScanner) (*database.Tag, error) {
	var t database.Tag
	var typ, source string
	var parentID uuid.NullUUID
	if err := row.Scan(&t.ID, &t.LibraryID, &t.Name, &typ, &source, &parentID, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Type = database.TagType(typ)
	t.Source = database.Source(source)
	if parentID.Valid {
		t.ParentID = &parentID.UUID
	}
	return &t, nil
}

// GetTag retrieves a tag by ID restricted to a library and type.
func (r *TagRepository) GetTag(ctx context.Context, libraryID, id uuid.UUID, tagType database.TagType) (*database.Tag, error) {
	t, err := scanTag(r.pool.QueryRow(ctx,
		"SELECT "+tagColumns+" FROM tags WHERE id = $1 AND library_id = $2 AND type = $3",
		id, libraryID, string(tagType),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return t, nil
}

// GetOrCreateTag returns the tag with the given identity, creating it if needed.
// Concurrent callers racing on the same identity get the same row.
func (r *TagRepository) GetOrCreateTag(ctx context.Context, libraryID uuid.UUID, name string, tagType database.TagType, source database.Source) (*database.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}

	// DO UPDATE with a no-op makes RETURNING yield the existing row on conflict
	t, err := scanTag(r.pool.QueryRow(ctx, `
		INSERT INTO tags (id, library_id, name, type, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (library_id, name, type, source) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+tagColumns,
		uuid.New(), libraryID, name, string(tagType), string(source),
	))
	if err != nil {
		return nil, fmt.Errorf("get or create tag: %w", err)
	}
	return t, nil
}

// ListTags returns the tags of a library ordered by name, optionally filtered by type.
func (r *TagRepository) ListTags(ctx context.Context, libraryID uuid.UUID, tagType database.TagType) ([]database.Tag, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+tagColumns+" FROM tags WHERE library_id = $1 AND ($2::text = '' OR type = $2::text) ORDER BY name, id",
		libraryID, string(tagType),
	)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []database.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}
