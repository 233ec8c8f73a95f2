package postgres

import (
	"context"
	"database/sql"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

type QueryRepository struct {
	db *sql.DB
}

func NewQueryRepository(db *sql.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

func (r *QueryRepository) CreateQuery(ctx context.Context, q *domain.Query) error {
	var parent sql.NullString
	if q.ParentQueryID != nil {
		parent = sql.NullString{String: *q.ParentQueryID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO queries (id, user_id, analysis_id, message, response, is_follow_up, parent_query_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, q.ID, q.UserID, q.AnalysisID, q.Message, q.Response, q.IsFollowUp, parent, q.CreatedAt)
	if err != nil {
		return classify("insert query", err)
	}
	return nil
}

// ListQueries returns the thread oldest first; seq breaks created_at ties.
func (r *QueryRepository) ListQueries(ctx context.Context, userID, analysisID string) ([]domain.Query, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, analysis_id, message, response, is_follow_up, parent_query_id, created_at
FROM queries
WHERE user_id = $1 AND analysis_id = $2
ORDER BY created_at ASC, seq ASC
`, userID, analysisID)
	if err != nil {
		return nil, classify("list queries", err)
	}
	defer rows.Close()

	out := make([]domain.Query, 0)
	for rows.Next() {
		var q domain.Query
		var parent sql.NullString
		if err := rows.Scan(
			&q.ID, &q.UserID, &q.AnalysisID, &q.Message, &q.Response,
			&q.IsFollowUp, &parent, &q.CreatedAt,
		); err != nil {
			return nil, classify("scan query", err)
		}
		if parent.Valid {
			id := parent.String
			q.ParentQueryID = &id
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate queries", err)
	}
	return out, nil
}
