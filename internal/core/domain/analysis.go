package domain

import (
	"encoding/json"
	"io"
	"strings"
	"time"
)

// AccidentVehicleToVehicle is the only accident category the analyzer accepts.
const AccidentVehicleToVehicle = "차대차"

// IndeterminateVerdict is the canonical spelling of an unresolved factor.
const IndeterminateVerdict = "판단 불가"

// LabelsDetected is the normalized inference bundle stored on an analysis.
// Analysis values are bool or string verdicts keyed by factor name.
type LabelsDetected struct {
	Analysis          map[string]any  `json:"analysis,omitempty"`
	SimilarCase       json.RawMessage `json:"similar_case,omitempty"`
	Explanation       *string         `json:"explanation,omitempty"`
	Question          *string         `json:"question,omitempty"`
	NeedsConfirmation bool            `json:"needs_confirmation"`
	UncertainItems    []string        `json:"uncertain_items"`
}

func (l LabelsDetected) IsZero() bool {
	return len(l.Analysis) == 0 &&
		len(l.SimilarCase) == 0 &&
		l.Explanation == nil &&
		l.Question == nil &&
		!l.NeedsConfirmation &&
		len(l.UncertainItems) == 0
}

// EvaluationCompleted derives completion: no pending question and nothing to confirm.
func (l LabelsDetected) EvaluationCompleted() bool {
	return !hasText(l.Question) && !l.NeedsConfirmation
}

func (l LabelsDetected) MarshalJSON() ([]byte, error) {
	if l.IsZero() {
		return []byte("{}"), nil
	}
	type plain LabelsDetected
	return json.Marshal(plain(l))
}

type Analysis struct {
	ID                    string          `json:"id"`
	RoadType              string          `json:"road_type"`
	AccidentType          string          `json:"accident_type"`
	FaultRatio            json.RawMessage `json:"fault_ratio"`
	LabelsDetected        LabelsDetected  `json:"labels_detected"`
	IsEvaluationCompleted bool            `json:"is_evaluation_completed"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// HasBaseline reports whether at least one inference round trip populated the analysis map.
func (a *Analysis) HasBaseline() bool {
	return len(a.LabelsDetected.Analysis) > 0
}

// ApplyLabels replaces the labels and re-derives completion from them.
func (a *Analysis) ApplyLabels(labels LabelsDetected, at time.Time) {
	a.LabelsDetected = labels
	a.IsEvaluationCompleted = labels.EvaluationCompleted()
	a.UpdatedAt = at
}

// InferenceResult is the raw analyze/refine payload before normalization.
type InferenceResult struct {
	Analysis          map[string]any  `json:"analysis"`
	SimilarCase       json.RawMessage `json:"similar_case"`
	Explanation       *string         `json:"explanation"`
	Question          *string         `json:"question"`
	NeedsConfirmation bool            `json:"needs_confirmation"`
	UncertainItems    []string        `json:"uncertain_items"`
}

type AnalyzeRequest struct {
	Filename     string
	MimeType     string
	Video        io.Reader
	RoadType     string
	AccidentType string
}

type RefineRequest struct {
	Analysis       map[string]any `json:"analysis"`
	Answer         string         `json:"answer"`
	UncertainItems []string       `json:"uncertain_items"`
}

type FollowupRequest struct {
	Message             string             `json:"message"`
	Analysis            map[string]any     `json:"analysis"`
	SimilarCase         json.RawMessage    `json:"similar_case,omitempty"`
	Explanation         *string            `json:"explanation"`
	IsFollowUp          bool               `json:"is_follow_up"`
	ParentQueryID       *string            `json:"parent_query_id"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
}

type FollowupResult struct {
	Response string `json:"response"`
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

type EvaluationLimits struct {
	AccidentType     string        `json:"accident_type"`
	InferenceTimeout time.Duration `json:"inference_timeout"`
}
