package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-finder/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository caches detected face embeddings per photo URL using pgvector.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// GetFaces retrieves all faces for a photo and whether it was processed.
func (r *FaceRepository) GetFaces(ctx context.Context, photoURL string) ([]database.StoredFace, bool, error) {
	var processed bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM faces_processed WHERE photo_url = $1)", photoURL,
	).Scan(&processed)
	if err != nil {
		return nil, false, fmt.Errorf("check faces processed: %w", err)
	}
	if !processed {
		return nil, false, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, photo_url, face_index, embedding, bbox, det_score, model, dim, created_at
		FROM faces
		WHERE photo_url = $1
		ORDER BY face_index
	`, photoURL)
	if err != nil {
		return nil, false, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	faces, err := scanFaces(rows)
	if err != nil {
		return nil, false, err
	}
	return faces, true, nil
}

// SaveFaces replaces the faces of a photo and marks it processed.
func (r *FaceRepository) SaveFaces(ctx context.Context, photoURL string, faces []database.StoredFace) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE photo_url = $1", photoURL); err != nil {
		return fmt.Errorf("delete existing faces: %w", err)
	}

	for i := range faces {
		face := &faces[i]
		var model sql.NullString
		if face.Model != "" {
			model = sql.NullString{String: face.Model, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO faces (photo_url, face_index, embedding, bbox, det_score, model, dim)
			VALUES ($1, $2, $3::vector, $4, $5, $6, $7)
		`,
			photoURL,
			face.FaceIndex,
			pgvector.NewVector(face.Embedding),
			pq.Array(face.BBox),
			face.DetScore,
			model,
			len(face.Embedding),
		); err != nil {
			return fmt.Errorf("insert face %s/%d: %w", photoURL, face.FaceIndex, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO faces_processed (photo_url, face_count)
		VALUES ($1, $2)
		ON CONFLICT (photo_url) DO UPDATE SET face_count = EXCLUDED.face_count, created_at = NOW()
	`, photoURL, len(faces)); err != nil {
		return fmt.Errorf("mark faces processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func scanFaces(rows *sql.Rows) ([]database.StoredFace, error) {
	var faces []database.StoredFace
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

func scanFaceRow(scanner interface{ Scan(...any) error }) (database.StoredFace, error) {
	var face database.StoredFace
	var vec pgvector.Vector
	var bbox pq.Float64Array
	var model sql.NullString

	if err := scanner.Scan(
		&face.ID,
		&face.PhotoURL,
		&face.FaceIndex,
		&vec,
		&bbox,
		&face.DetScore,
		&model,
		&face.Dim,
		&face.CreatedAt,
	); err != nil {
		return face, fmt.Errorf("scan face: %w", err)
	}

	face.Embedding = vec.Slice()
	face.BBox = []float64(bbox)
	if model.Valid {
		face.Model = model.String
	}
	return face, nil
}

var _ database.FaceStore = (*FaceRepository)(nil)
