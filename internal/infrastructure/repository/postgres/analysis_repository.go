package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) CreateAnalysis(ctx context.Context, a *domain.Analysis) error {
	labelsJSON, err := json.Marshal(a.LabelsDetected)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analyses (
	id, road_type, accident_type, fault_ratio, labels_detected, is_evaluation_completed, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		a.ID, a.RoadType, a.AccidentType, faultRatioOrEmpty(a.FaultRatio), labelsJSON,
		a.IsEvaluationCompleted, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return classify("insert analysis", err)
	}
	return nil
}

func (r *AnalysisRepository) GetAnalysisByID(ctx context.Context, id string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, road_type, accident_type, fault_ratio, labels_detected, is_evaluation_completed, created_at, updated_at
FROM analyses
WHERE id = $1
`, id)

	var a domain.Analysis
	var faultRaw, labelsRaw []byte
	err := row.Scan(
		&a.ID, &a.RoadType, &a.AccidentType, &faultRaw, &labelsRaw,
		&a.IsEvaluationCompleted, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get analysis", "analysis", id)
		}
		return nil, classify("scan analysis", err)
	}

	if err := json.Unmarshal(labelsRaw, &a.LabelsDetected); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "get analysis", fmt.Errorf("unmarshal labels: %w", err))
	}
	a.FaultRatio = json.RawMessage(faultRatioOrEmpty(faultRaw))
	return &a, nil
}

// SaveLabels writes labels and the derived completion flag as one row update.
func (r *AnalysisRepository) SaveLabels(ctx context.Context, a *domain.Analysis) error {
	labelsJSON, err := json.Marshal(a.LabelsDetected)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE analyses
SET labels_detected = $2, is_evaluation_completed = $3, updated_at = $4
WHERE id = $1
`, a.ID, labelsJSON, a.IsEvaluationCompleted, a.UpdatedAt)
	if err != nil {
		return classify("save labels", err)
	}
	return expectAffected(res, "save labels", "analysis", a.ID)
}

func faultRatioOrEmpty(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
