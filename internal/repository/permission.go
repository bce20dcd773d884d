package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interaction-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const permissionColumns = `id, photo_id, owner_id, requester_id, status, message, response_message,
	created_at, responded_at, expires_at`

// PermissionRepository handles database operations for the photo permission ledger
type PermissionRepository struct {
	db *pgxpool.Pool
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// UpsertPending inserts a pending request, or reopens a rejected or expired one for
// the same (photo, requester). A pending or live approved record is returned untouched.
// The insert and the reopen are one statement, so concurrent callers converge on one row.
func (r *PermissionRepository) UpsertPending(ctx context.Context, req *models.PermissionRequest) (*models.PermissionRequest, models.UpsertOutcome, error) {
	query := `
		INSERT INTO photo_permissions (id, photo_id, owner_id, requester_id, status, message, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		ON CONFLICT (photo_id, requester_id) DO UPDATE
		SET status = 'pending',
			message = EXCLUDED.message,
			response_message = '',
			created_at = EXCLUDED.created_at,
			responded_at = NULL,
			expires_at = NULL
		WHERE photo_permissions.status = 'rejected'
			OR (photo_permissions.status = 'approved'
				AND photo_permissions.expires_at IS NOT NULL
				AND photo_permissions.expires_at <= EXCLUDED.created_at)
		RETURNING ` + permissionColumns + `, (xmax = 0) AS inserted
	`
	var inserted bool
	perm, err := scanPermission(r.db.QueryRow(ctx, query,
		req.ID, req.PhotoID, req.OwnerID, req.RequesterID, req.Message, req.CreatedAt,
	), &inserted)
	if err == nil {
		if inserted {
			return perm, models.UpsertCreated, nil
		}
		return perm, models.UpsertReopened, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("failed to upsert permission: %w", err)
	}

	// Conflict with a live record: the WHERE clause suppressed the update
	existing, err := r.GetByPhotoAndRequester(ctx, req.PhotoID, req.RequesterID)
	if err != nil {
		return nil, "", err
	}
	return existing, models.UpsertExisting, nil
}

// UpsertApproved writes an approved grant for (photo, requester), whatever the prior state
func (r *PermissionRepository) UpsertApproved(ctx context.Context, req *models.PermissionRequest) (*models.PermissionRequest, models.UpsertOutcome, error) {
	query := `
		INSERT INTO photo_permissions (id, photo_id, owner_id, requester_id, status, message,
			response_message, created_at, responded_at, expires_at)
		VALUES ($1, $2, $3, $4, 'approved', $5, $6, $7, $8, $9)
		ON CONFLICT (photo_id, requester_id) DO UPDATE
		SET status = 'approved',
			response_message = EXCLUDED.response_message,
			responded_at = EXCLUDED.responded_at,
			expires_at = EXCLUDED.expires_at
		RETURNING ` + permissionColumns + `, (xmax = 0) AS inserted
	`
	var inserted bool
	perm, err := scanPermission(r.db.QueryRow(ctx, query,
		req.ID, req.PhotoID, req.OwnerID, req.RequesterID, req.Message, req.ResponseMessage,
		req.CreatedAt, req.RespondedAt, req.ExpiresAt,
	), &inserted)
	if err != nil {
		return nil, "", fmt.Errorf("failed to grant permission: %w", err)
	}
	if inserted {
		return perm, models.UpsertCreated, nil
	}
	return perm, models.UpsertExisting, nil
}

// GetByID retrieves a permission request by ID
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM photo_permissions WHERE id = $1`
	perm, err := scanPermission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("permission %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return perm, nil
}

// GetByPhotoAndRequester retrieves the ledger entry for a (photo, requester) pair
func (r *PermissionRepository) GetByPhotoAndRequester(ctx context.Context, photoID string, requesterID models.UserID) (*models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM photo_permissions WHERE photo_id = $1 AND requester_id = $2`
	perm, err := scanPermission(r.db.QueryRow(ctx, query, photoID, requesterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("permission for photo %s: %w", photoID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return perm, nil
}

// Transition moves a record from one status to another in a single conditional
// update. A record in any other status yields an InvalidStateError.
func (r *PermissionRepository) Transition(ctx context.Context, id string, from models.PermissionStatus, to models.PermissionStatus, responseMessage string, at time.Time, expiresAt *time.Time) (*models.PermissionRequest, error) {
	query := `
		UPDATE photo_permissions
		SET status = $2, response_message = $3, responded_at = $4, expires_at = $5
		WHERE id = $1 AND status = $6
		RETURNING ` + permissionColumns
	perm, err := scanPermission(r.db.QueryRow(ctx, query, id, to, responseMessage, at, expiresAt, from))
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update permission: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &models.InvalidStateError{
		Reason:  fmt.Sprintf("permission is not %s", from),
		Current: string(current.Status),
	}
}

// ListByOwner lists requests for the owner's photos, optionally filtered by status
func (r *PermissionRepository) ListByOwner(ctx context.Context, ownerID models.UserID, status models.PermissionStatus) ([]*models.PermissionRequest, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM photo_permissions
		WHERE owner_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, ownerID, string(status))
}

// ListByRequester lists requests made by the requester
func (r *PermissionRepository) ListByRequester(ctx context.Context, requesterID models.UserID) ([]*models.PermissionRequest, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM photo_permissions
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, requesterID)
}

// ListApprovedForViewer lists approved grants a viewer holds on an owner's photos
func (r *PermissionRepository) ListApprovedForViewer(ctx context.Context, ownerID, viewerID models.UserID) ([]*models.PermissionRequest, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM photo_permissions
		WHERE owner_id = $1 AND requester_id = $2 AND status = 'approved'
	`
	return r.list(ctx, query, ownerID, viewerID)
}

func (r *PermissionRepository) list(ctx context.Context, query string, args ...any) ([]*models.PermissionRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []*models.PermissionRequest
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return perms, nil
}

func scanPermission(row pgx.Row, extra ...any) (*models.PermissionRequest, error) {
	var p models.PermissionRequest
	dest := []any{
		&p.ID, &p.PhotoID, &p.OwnerID, &p.RequesterID, &p.Status, &p.Message, &p.ResponseMessage,
		&p.CreatedAt, &p.RespondedAt, &p.ExpiresAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}
