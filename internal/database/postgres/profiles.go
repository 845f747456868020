package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

// ProfileRepository stores face profiles in face_profiles and face_profile_photos.
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetProfile returns the owner's profile or nil if none exists.
func (r *ProfileRepository) GetProfile(ctx context.Context, ownerID string) (*facematch.FaceProfile, error) {
	p := &facematch.FaceProfile{OwnerID: ownerID}
	var method string
	err := r.pool.QueryRow(ctx,
		"SELECT method, created_at, updated_at FROM face_profiles WHERE owner_id = $1", ownerID,
	).Scan(&method, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.Method = facematch.CaptureMethod(method)

	rows, err := r.pool.Query(ctx,
		"SELECT url, quality_score FROM face_profile_photos WHERE owner_id = $1 ORDER BY position", ownerID)
	if err != nil {
		return nil, fmt.Errorf("query profile photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var photo facematch.ProfilePhoto
		if err := rows.Scan(&photo.URL, &photo.QualityScore); err != nil {
			return nil, fmt.Errorf("scan profile photo: %w", err)
		}
		p.Photos = append(p.Photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile photos: %w", err)
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// SaveProfile replaces the owner's profile and photos in one transaction.
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *facematch.FaceProfile) error {
	if profile == nil {
		return errors.New("nil profile")
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO face_profiles (owner_id, method, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			method = EXCLUDED.method,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, profile.OwnerID, string(profile.Method), profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_profile_photos WHERE owner_id = $1", profile.OwnerID); err != nil {
		return fmt.Errorf("delete profile photos: %w", err)
	}

	for i, photo := range profile.Photos {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO face_profile_photos (owner_id, position, url, quality_score) VALUES ($1, $2, $3, $4)",
			profile.OwnerID, i, photo.URL, photo.QualityScore,
		); err != nil {
			return fmt.Errorf("insert profile photo %s: %w", photo.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteProfile removes the profile; photos are removed by cascade.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, ownerID string) (bool, error) {
	res, err := r.pool.Exec(ctx, "DELETE FROM face_profiles WHERE owner_id = $1", ownerID)
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

var _ database.ProfileRepository = (*ProfileRepository)(nil)
