package reason

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

// analysisWire is the JSON shape the model is instructed to emit.
type analysisWire struct {
	RootCause         string   `json:"root_cause"`
	Confidence        float64  `json:"confidence"`
	Impact            string   `json:"impact"`
	RecommendedAction string   `json:"recommended_action"`
	FixDescription    string   `json:"fix_description"`
	ReasoningSteps    []string `json:"reasoning_steps"`
	RelatedServices   []string `json:"related_services"`
}

// parseAnalysis extracts an Analysis from raw model output. Models wrap JSON
// in markdown fences or prose often enough that we scan for the outermost
// object instead of trusting the whole payload. Unparseable output degrades
// to a zero-confidence escalation rather than an error, so one malformed
// completion never aborts a pipeline run.
func parseAnalysis(raw, eventID string) models.Analysis {
	text := stripFences(raw)
	body, ok := extractObject(text)
	if !ok {
		return fallbackAnalysis(raw, eventID)
	}

	var wire analysisWire
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return fallbackAnalysis(raw, eventID)
	}

	action := models.RecommendedAction(wire.RecommendedAction)
	switch action {
	case models.ActionAutoFix, models.ActionEscalate, models.ActionMonitor:
	default:
		action = models.ActionEscalate
	}

	return models.Analysis{
		EventID:           eventID,
		RootCause:         wire.RootCause,
		Confidence:        clampConfidence(wire.Confidence),
		Impact:            wire.Impact,
		RecommendedAction: action,
		FixDescription:    wire.FixDescription,
		ReasoningSteps:    wire.ReasoningSteps,
		RelatedServices:   wire.RelatedServices,
	}
}

func fallbackAnalysis(raw, eventID string) models.Analysis {
	summary := strings.TrimSpace(raw)
	if len(summary) > 200 {
		summary = summary[:200]
	}
	return models.Analysis{
		EventID:           eventID,
		RootCause:         "Model response could not be parsed: " + summary,
		Confidence:        0,
		Impact:            "Unknown",
		RecommendedAction: models.ActionEscalate,
		FixDescription:    "Manual investigation required.",
	}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// stripFences removes a leading/trailing markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced top-level JSON object in s.
// Brace counting ignores braces inside string literals.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
