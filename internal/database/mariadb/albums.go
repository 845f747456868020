package mariadb

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

// albumPhotosQuery lists the visible photos of an album with their primary file.
// The primary file's updated_at changes when a photo is replaced, so it serves as the upload time.
const albumPhotosQuery = `
	SELECT p.photo_uid, f.file_hash, f.updated_at
	FROM photos p
	JOIN photos_albums pa ON pa.photo_uid = p.photo_uid
	JOIN files f ON f.photo_id = p.id AND f.file_primary = 1 AND f.file_missing = 0
	WHERE pa.album_uid = ? AND pa.hidden = 0 AND p.deleted_at IS NULL
	ORDER BY p.photo_uid
`

// AlbumSource reads album contents straight from the PhotoPrism database.
type AlbumSource struct {
	pool   *Pool
	urlFor func(fileHash string) string
}

// NewAlbumSource creates a photo source. urlFor turns a file hash into a
// download URL; when it returns "", the file hash is used as URL.
func NewAlbumSource(pool *Pool, urlFor func(fileHash string) string) *AlbumSource {
	return &AlbumSource{pool: pool, urlFor: urlFor}
}

// AlbumPhotos returns the photos of an album ordered by photo UID.
func (s *AlbumSource) AlbumPhotos(ctx context.Context, albumUID string) ([]facematch.PhotoRecord, error) {
	if albumUID == "" {
		return nil, errors.New("album UID is required")
	}

	rows, err := s.pool.db.QueryContext(ctx, albumPhotosQuery, albumUID)
	if err != nil {
		return nil, fmt.Errorf("query album photos: %w", err)
	}
	defer rows.Close()

	var photos []facematch.PhotoRecord
	for rows.Next() {
		var rec facematch.PhotoRecord
		var hash string
		if err := rows.Scan(&rec.ID, &hash, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan album photo: %w", err)
		}
		rec.URL = hash
		if s.urlFor != nil {
			if u := s.urlFor(hash); u != "" {
				rec.URL = u
			}
		}
		rec.UploadedAt = rec.UploadedAt.UTC()
		photos = append(photos, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album photos: %w", err)
	}
	return photos, nil
}

var _ database.PhotoSource = (*AlbumSource)(nil)
