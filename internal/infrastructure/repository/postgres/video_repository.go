package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, user_id, analysis_id, filename, mime_type, storage_path, status, error_message, uploaded_at, updated_at`

// CreateVideo relies on the analysis_id unique constraint to reject a second binding.
func (r *VideoRepository) CreateVideo(ctx context.Context, v *domain.Video) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO videos (`+videoColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		v.ID, v.UserID, v.AnalysisID, v.Filename, v.MimeType, v.StoragePath,
		string(v.Status), v.Error, v.UploadedAt, v.UpdatedAt,
	)
	if err != nil {
		return classify("insert video", err)
	}
	return nil
}

func (r *VideoRepository) GetVideoByID(ctx context.Context, id string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+videoColumns+`
FROM videos
WHERE id = $1
`, id)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get video", "video", id)
		}
		return nil, classify("scan video", err)
	}
	return v, nil
}

func (r *VideoRepository) GetVideoByAnalysisID(ctx context.Context, analysisID string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+videoColumns+`
FROM videos
WHERE analysis_id = $1
`, analysisID)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get video by analysis", "analysis", analysisID)
		}
		return nil, classify("scan video", err)
	}
	return v, nil
}

func (r *VideoRepository) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE videos
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return classify("update video status", err)
	}
	return expectAffected(res, "update video status", "video", id)
}

func scanVideo(row *sql.Row) (*domain.Video, error) {
	var v domain.Video
	var status string
	err := row.Scan(
		&v.ID, &v.UserID, &v.AnalysisID, &v.Filename, &v.MimeType, &v.StoragePath,
		&status, &v.Error, &v.UploadedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = domain.VideoStatus(status)
	return &v, nil
}
