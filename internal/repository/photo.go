package repository

import (
	"context"
	"errors"
	"fmt"

	"interaction-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const photoColumns = `id, owner_id, storage_key, url, visibility, is_profile, is_deleted,
	width, height, size_bytes, mime_type, uploaded_at`

// PhotoRepository handles database operations for photos.
// Mutations of one owner's collection are serialized by an advisory lock on the owner.
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts a photo. The first live photo of an owner becomes the profile photo.
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, "photos", photo.OwnerID.String()); err != nil {
			return err
		}

		var hasLive bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM photos WHERE owner_id = $1 AND NOT is_deleted)`,
			photo.OwnerID,
		).Scan(&hasLive)
		if err != nil {
			return fmt.Errorf("failed to check existing photos: %w", err)
		}
		photo.IsProfile = !hasLive

		query := `
			INSERT INTO photos (id, owner_id, storage_key, url, visibility, is_profile, is_deleted,
				width, height, size_bytes, mime_type, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8, $9, $10, $11)
		`
		_, err = tx.Exec(ctx, query,
			photo.ID, photo.OwnerID, photo.StorageKey, photo.URL, photo.Visibility, photo.IsProfile,
			photo.Metadata.Width, photo.Metadata.Height, photo.Metadata.Size, photo.Metadata.MimeType,
			photo.UploadedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create photo: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a photo by ID, including soft-deleted ones
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`
	photo, err := scanPhoto(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

// ListByOwner retrieves the live photos of an owner, profile photo first
func (r *PhotoRepository) ListByOwner(ctx context.Context, ownerID models.UserID) ([]*models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE owner_id = $1 AND NOT is_deleted
		ORDER BY is_profile DESC, uploaded_at DESC
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

// UpdateVisibility changes the tier of a live photo
func (r *PhotoRepository) UpdateVisibility(ctx context.Context, id string, visibility models.Visibility) (*models.Photo, error) {
	query := `
		UPDATE photos SET visibility = $1
		WHERE id = $2 AND NOT is_deleted
		RETURNING ` + photoColumns
	photo, err := scanPhoto(r.db.QueryRow(ctx, query, visibility, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update photo visibility: %w", err)
	}
	return photo, nil
}

// SetProfile moves profile primacy to the given live photo of the owner
func (r *PhotoRepository) SetProfile(ctx context.Context, ownerID models.UserID, id string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, "photos", ownerID.String()); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM photos WHERE id = $1 AND owner_id = $2 AND NOT is_deleted)`,
			id, ownerID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check photo: %w", err)
		}
		if !exists {
			return fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
		}

		// clear first: the partial unique index allows one live profile photo per owner
		_, err = tx.Exec(ctx,
			`UPDATE photos SET is_profile = FALSE WHERE owner_id = $1 AND is_profile AND id <> $2`,
			ownerID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to clear profile photo: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE photos SET is_profile = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to set profile photo: %w", err)
		}
		return nil
	})
}

// SoftDelete flags a photo deleted while keeping the collection invariants:
// the last live photo and the profile photo cannot be deleted.
func (r *PhotoRepository) SoftDelete(ctx context.Context, ownerID models.UserID, id string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, "photos", ownerID.String()); err != nil {
			return err
		}

		var isProfile bool
		var live int
		err := tx.QueryRow(ctx, `
			SELECT p.is_profile,
				(SELECT COUNT(*) FROM photos WHERE owner_id = $2 AND NOT is_deleted)
			FROM photos p
			WHERE p.id = $1 AND p.owner_id = $2 AND NOT p.is_deleted
		`, id, ownerID).Scan(&isProfile, &live)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("photo %s: %w", id, models.ErrNotFound)
			}
			return fmt.Errorf("failed to load photo: %w", err)
		}
		if err := models.CheckPhotoDeletable(isProfile, live); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE photos SET is_deleted = TRUE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete photo: %w", err)
		}
		return nil
	})
}

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	var p models.Photo
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.StorageKey, &p.URL, &p.Visibility, &p.IsProfile, &p.IsDeleted,
		&p.Metadata.Width, &p.Metadata.Height, &p.Metadata.Size, &p.Metadata.MimeType, &p.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
