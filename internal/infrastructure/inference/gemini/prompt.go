package gemini

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

const followupSystemPrompt = "당신은 교통사고 과실 판단 전문가입니다."

var factorsByRoadType = map[string][]string{
	"교차로":  {"신호위반", "선진입 여부", "회전 중 주의의무 위반", "역주행 여부", "진로변경 위반", "돌발운전 여부"},
	"고속도로": {"안전거리 미확보", "역주행 여부", "돌발운전 여부", "진로변경 위반"},
	"일반도로": {"중앙선 침범", "안전거리 미확보", "진로변경 위반", "돌발운전 여부", "역주행 여부"},
	"대로":   {"중앙선 침범", "안전거리 미확보", "진로변경 위반", "돌발운전 여부", "역주행 여부"},
	"소로":   {"중앙선 침범", "안전거리 미확보", "진로변경 위반", "돌발운전 여부", "역주행 여부"},
	"골목길":  {"선진입 불분명", "안전거리 미확보", "진로변경 위반", "돌발운전 여부"},
	"주택가":  {"선진입 불분명", "안전거리 미확보", "진로변경 위반", "돌발운전 여부"},
	"주차장":  {"선진입 불분명", "안전거리 미확보", "진로변경 위반", "돌발운전 여부"},
}

const resultShape = `{
  "analysis": {"<항목>": true | false | "판단 불가: <사유>"},
  "similar_case": null,
  "explanation": "<과실 비율 설명 또는 null>",
  "question": "<판단 불가 항목에 대한 질문 한 문장 또는 null>",
  "needs_confirmation": true | false,
  "uncertain_items": ["<판단 불가 항목>"]
}`

func buildAnalyzePrompt(roadType, accidentType string) string {
	factors := factorsByRoadType[strings.TrimSpace(roadType)]
	if len(factors) == 0 {
		factors = factorsByRoadType["일반도로"]
	}

	var b strings.Builder
	b.WriteString("당신은 블랙박스 영상으로 교통사고 과실을 판단하는 전문가입니다.\n")
	fmt.Fprintf(&b, "사고 유형: %s\n도로 유형: %s\n", accidentType, roadType)
	b.WriteString("사용자의 차량이 A이고, 상대 차량이 B입니다.\n")
	b.WriteString("영상을 보고 다음 항목을 판단하세요:\n")
	for _, f := range factors {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("영상만으로 판단할 수 없는 항목은 \"판단 불가: <사유>\"로 표시하고 uncertain_items에 넣은 뒤 사용자에게 물어볼 질문을 작성하세요.\n")
	b.WriteString("모든 항목이 판단되면 explanation에 과실 비율 설명을 작성하세요.\n")
	b.WriteString("다음 JSON 형식으로만 응답하세요:\n")
	b.WriteString(resultShape)
	return b.String()
}

func buildRefinePrompt(req domain.RefineRequest) (string, error) {
	analysisJSON, err := json.Marshal(req.Analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	itemsJSON, err := json.Marshal(req.UncertainItems)
	if err != nil {
		return "", fmt.Errorf("marshal uncertain items: %w", err)
	}

	var b strings.Builder
	b.WriteString("다음은 교통사고 분석 결과와 사용자의 응답입니다.\n")
	fmt.Fprintf(&b, "현재 분석 결과:\n%s\n", analysisJSON)
	fmt.Fprintf(&b, "판독불가 항목:\n%s\n", itemsJSON)
	fmt.Fprintf(&b, "사용자 응답:\n%s\n", req.Answer)
	b.WriteString("판독불가 항목에 대해서만 값을 변경하고 나머지 항목은 그대로 유지하세요.\n")
	b.WriteString("여전히 판단할 수 없는 항목이 남으면 질문을 다시 작성하세요.\n")
	b.WriteString("다음 JSON 형식으로만 응답하세요:\n")
	b.WriteString(resultShape)
	return b.String(), nil
}

func buildFollowupPrompt(req domain.FollowupRequest) (string, error) {
	analysisJSON, err := json.Marshal(req.Analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	explanation := ""
	if req.Explanation != nil {
		explanation = *req.Explanation
	}

	var b strings.Builder
	if len(req.ConversationHistory) > 0 {
		b.WriteString("이전 대화:\n")
		for _, turn := range req.ConversationHistory {
			speaker := "사용자"
			if turn.Role == domain.RoleAssistant {
				speaker = "전문가"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("다음은 한 사용자의 교통사고 분석 결과입니다:\n")
	fmt.Fprintf(&b, "분석결과 -> %s\n", analysisJSON)
	fmt.Fprintf(&b, "해당 사고에 대한 과실예측 -> %s\n", explanation)
	fmt.Fprintf(&b, "사용자가 이에 대해 다음과 같은 질문을 했습니다:\n%q\n", req.Message)
	b.WriteString("이 사고 분석 결과를 바탕으로 교통사고 과실 판단 전문가로서 자연스럽고 정확하게 설명해 주세요.\n")
	b.WriteString("참고로 사용자의 차량이 A이고, 상대 차량이 B입니다.\n")
	return b.String(), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
