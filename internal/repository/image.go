package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakhistudio/gallery-service/internal/model"
)

// ImageRepository persists gallery image records.
type ImageRepository struct {
	db DB
}

// NewImageRepository constructs a repository.
func NewImageRepository(db DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// List returns every record ordered by upload time, newest first.
func (r *ImageRepository) List(ctx context.Context) ([]model.ImageRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, image_url, title, category, COALESCE(description,''), tags, featured, COALESCE(uploaded_by::text,''), uploaded_at
		FROM gallery_images
		ORDER BY uploaded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select images: %w", err)
	}
	defer rows.Close()

	var records []model.ImageRecord
	for rows.Next() {
		var rec model.ImageRecord
		if err := rows.Scan(&rec.ID, &rec.ImageURL, &rec.Title, &rec.Category, &rec.Description, &rec.Tags, &rec.Featured, &rec.UploadedBy, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return records, nil
}

// Get returns a single record by ID.
func (r *ImageRepository) Get(ctx context.Context, id string) (*model.ImageRecord, error) {
	var rec model.ImageRecord
	row := r.db.QueryRow(ctx, `
		SELECT id, image_url, title, category, COALESCE(description,''), tags, featured, COALESCE(uploaded_by::text,''), uploaded_at
		FROM gallery_images WHERE id=$1
	`, id)
	if err := row.Scan(&rec.ID, &rec.ImageURL, &rec.Title, &rec.Category, &rec.Description, &rec.Tags, &rec.Featured, &rec.UploadedBy, &rec.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select image: %w", err)
	}
	return &rec, nil
}

// Insert stores a new record, assigning ID and upload time when unset. The ID
// is immutable afterwards.
func (r *ImageRepository) Insert(ctx context.Context, rec *model.ImageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	var uploadedBy any
	if rec.UploadedBy != "" {
		uploadedBy = rec.UploadedBy
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO gallery_images (id, image_url, title, category, description, tags, featured, uploaded_by, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.ImageURL, rec.Title, rec.Category, nullable(rec.Description), tags, rec.Featured, uploadedBy, rec.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// Update writes only the mutable fields of a record.
func (r *ImageRepository) Update(ctx context.Context, id string, upd model.ImageUpdate) error {
	tags := upd.Tags
	if tags == nil {
		tags = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE gallery_images
		SET title=$1, category=$2, description=$3, tags=$4
		WHERE id=$5
	`, upd.Title, upd.Category, nullable(upd.Description), tags, id)
	if err != nil {
		return fmt.Errorf("update image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record row. Object storage cleanup is handled separately.
func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gallery_images WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
