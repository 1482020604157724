package postgres

import (
	"context"
	"database/sql"
	"errors"

	"mediavault/internal/model"
	"mediavault/internal/registry"
)

// MediaPostgres is a PostgreSQL implementation of registry.MediaRegistry.
// It uses database/sql with parameterized queries and contains no business
// logic. Terminal-state monotonicity for moderation is enforced in SQL:
// the update predicate only matches pending rows, so two racing workers
// cannot both transition the same record.
type MediaPostgres struct {
	db *sql.DB
}

// NewMediaPostgres creates a new MediaPostgres registry.
func NewMediaPostgres(db *sql.DB) *MediaPostgres {
	return &MediaPostgres{db: db}
}

var _ registry.MediaRegistry = (*MediaPostgres)(nil)

const mediaColumns = `id, owner_id, original_name, mime_type, size_bytes, storage_pointer,
	thumbnail_pointer, width, height, duration_seconds, encrypted, moderation_status, verified, created_at`

func scanMedia(row interface{ Scan(...any) error }) (*model.MediaObject, error) {
	var m model.MediaObject
	var thumb sql.NullString
	var width, height sql.NullInt64
	var duration sql.NullFloat64
	if err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.OriginalName,
		&m.MimeType,
		&m.SizeBytes,
		&m.StoragePointer,
		&thumb,
		&width,
		&height,
		&duration,
		&m.Encrypted,
		&m.ModerationStatus,
		&m.Verified,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if thumb.Valid {
		m.ThumbnailPointer = thumb.String
	}
	if width.Valid && height.Valid {
		m.Dimensions = &model.Dimensions{Width: int(width.Int64), Height: int(height.Int64)}
	}
	if duration.Valid {
		d := duration.Float64
		m.DurationSeconds = &d
	}
	return &m, nil
}

func nullableFields(m *model.MediaObject) (thumb sql.NullString, width, height sql.NullInt64, duration sql.NullFloat64) {
	if m.ThumbnailPointer != "" {
		thumb = sql.NullString{String: m.ThumbnailPointer, Valid: true}
	}
	if m.Dimensions != nil {
		width = sql.NullInt64{Int64: int64(m.Dimensions.Width), Valid: true}
		height = sql.NullInt64{Int64: int64(m.Dimensions.Height), Valid: true}
	}
	if m.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *m.DurationSeconds, Valid: true}
	}
	return
}

// Create inserts a new media row and returns the stored record.
func (r *MediaPostgres) Create(ctx context.Context, obj *model.MediaObject) (*model.MediaObject, error) {
	const q = `
		INSERT INTO media (id, owner_id, original_name, mime_type, size_bytes, storage_pointer,
			thumbnail_pointer, width, height, duration_seconds, encrypted, moderation_status, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + mediaColumns
	thumb, width, height, duration := nullableFields(obj)
	row := r.db.QueryRowContext(ctx, q,
		obj.ID,
		obj.OwnerID,
		obj.OriginalName,
		obj.MimeType,
		obj.SizeBytes,
		obj.StoragePointer,
		thumb,
		width,
		height,
		duration,
		obj.Encrypted,
		obj.ModerationStatus,
		obj.Verified,
		obj.CreatedAt,
	)
	return scanMedia(row)
}

// FindByID fetches a single media object by its ID.
func (r *MediaPostgres) FindByID(ctx context.Context, id string) (*model.MediaObject, error) {
	const q = `SELECT ` + mediaColumns + ` FROM media WHERE id = $1`
	m, err := scanMedia(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registry.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListByOwner returns one owner's media using LIMIT/OFFSET pagination and
// a total count.
func (r *MediaPostgres) ListByOwner(ctx context.Context, ownerID string, pq registry.PageQuery) (*registry.PageResult[model.MediaObject], error) {
	const qCount = `SELECT COUNT(*) FROM media WHERE owner_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.MediaObject, 0)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &registry.PageResult[model.MediaObject]{Items: items, Total: total}, nil
}

// UpdateModeration transitions a pending row to a terminal status. The
// WHERE clause keeps terminal rows untouched.
func (r *MediaPostgres) UpdateModeration(ctx context.Context, id string, status model.ModerationStatus, verified bool) error {
	const q = `
		UPDATE media
		SET moderation_status = $2, verified = $3
		WHERE id = $1 AND moderation_status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, q, id, status, verified)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing row from one already moderated.
		const qExists = `SELECT EXISTS (SELECT 1 FROM media WHERE id = $1)`
		var exists bool
		if err := r.db.QueryRowContext(ctx, qExists, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return registry.ErrNotFound
		}
		return registry.ErrAlreadyModerated
	}
	return nil
}

// Delete removes a media row by ID. It does not return an error if the row
// does not exist.
func (r *MediaPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM media WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
