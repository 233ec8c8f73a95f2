package gemini

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

// cleanJSON strips markdown fences and surrounding prose from a model reply.
func cleanJSON(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(cleaned, fence) {
			cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, fence), "```")
			break
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	if !utf8.ValidString(cleaned) {
		cleaned = strings.ToValidUTF8(cleaned, "")
	}
	return strings.TrimPrefix(cleaned, "\uFEFF")
}

// completeResult fills the fields the server-side analyzer derives itself.
func completeResult(res *domain.InferenceResult) {
	if len(res.UncertainItems) == 0 {
		res.UncertainItems = unresolvedFactors(res.Analysis)
	}
	if len(res.UncertainItems) > 0 && !res.NeedsConfirmation {
		res.NeedsConfirmation = true
	}
	if len(res.UncertainItems) == 0 {
		res.Question = nil
		res.NeedsConfirmation = false
	}
}

func unresolvedFactors(analysis map[string]any) []string {
	out := make([]string, 0)
	for _, key := range sortedKeys(analysis) {
		if s, ok := analysis[key].(string); ok && isIndeterminate(s) {
			out = append(out, key)
		}
	}
	return out
}

func isIndeterminate(s string) bool {
	return strings.Contains(s, "판단불가") || strings.Contains(s, domain.IndeterminateVerdict)
}

// mergeAnswered keeps every settled verdict and takes only the previously
// uncertain factors from the model's update.
func mergeAnswered(current, updated map[string]any, uncertain []string) map[string]any {
	out := make(map[string]any, len(current))
	for k, v := range current {
		out[k] = v
	}
	for _, key := range uncertain {
		if v, ok := updated[key]; ok {
			out[key] = v
		}
	}
	return out
}
