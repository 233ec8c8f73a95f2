package usecase

import (
	"bytes"
	"errors"
	"strings"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

// indeterminateToken is the unspaced form the analyzer emits for unresolved factors.
const indeterminateToken = "판단불가"

// NormalizeInference turns a raw analyze/refine payload into stored labels and
// reports whether the evaluation is complete.
func NormalizeInference(raw *domain.InferenceResult) (domain.LabelsDetected, bool, error) {
	if raw == nil {
		return domain.LabelsDetected{}, false, domain.WrapError(domain.ErrUpstreamContract, "normalize inference", errors.New("empty response"))
	}
	if len(raw.Analysis) == 0 {
		return domain.LabelsDetected{}, false, domain.WrapError(domain.ErrUpstreamContract, "normalize inference", errors.New("response has no analysis"))
	}

	analysis := make(map[string]any, len(raw.Analysis))
	for factor, verdict := range raw.Analysis {
		analysis[factor] = normalizeVerdict(verdict)
	}

	uncertain := make([]string, 0, len(raw.UncertainItems))
	uncertain = append(uncertain, raw.UncertainItems...)

	labels := domain.LabelsDetected{
		Analysis:          analysis,
		SimilarCase:       dropJSONNull(raw.SimilarCase),
		Explanation:       raw.Explanation,
		Question:          raw.Question,
		NeedsConfirmation: raw.NeedsConfirmation,
		UncertainItems:    uncertain,
	}
	return labels, labels.EvaluationCompleted(), nil
}

func normalizeVerdict(verdict any) any {
	text, ok := verdict.(string)
	if ok && strings.Contains(text, indeterminateToken) {
		return domain.IndeterminateVerdict
	}
	return verdict
}

func dropJSONNull(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
