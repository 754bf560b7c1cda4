package completion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mactrac-proxy/internal/domain"
)

// MaxWrappedChars caps the serialized caller payload placed in the user message.
const MaxWrappedChars = 12000

// BackendPrompt is the system instruction used when a caller sends raw data
// instead of a conversation.
const BackendPrompt = "You are a no-nonsense sports nutrition analyst.\n" +
	"Return STRICT JSON only. Prefer exact values from on-page data; otherwise use USDA typical values. " +
	"JUST ESTIMATE OFF THE TITLE OF THE PRODUCT IF THERES NO ESTIMATED VALUES. " +
	"ESTIMATE TO THE EXACT 1s PLACE THO DONT JUST GO BY 10s\n" +
	"Schema:\n" +
	"{\n" +
	`  "is_recipe": boolean,` + "\n" +
	`  "servings": int | null,` + "\n" +
	`  "serving_size": string | null,` + "\n" +
	`  "macros_per_serving": {"calories": int | null, "protein_g": float | null, "carbs_g": float | null, "fat_g": float | null},` + "\n" +
	`  "macros_total": {"calories": int | null, "protein_g": float | null, "carbs_g": float | null, "fat_g": float | null},` + "\n" +
	`  "confidence": float,` + "\n" +
	`  "assumptions": [string]` + "\n" +
	"}"

// Normalize returns body unchanged when it already carries a non-empty
// "messages" list. Otherwise it wraps the whole body, serialized and truncated,
// as the user turn after BackendPrompt.
func Normalize(body map[string]any, defaultModel string) (map[string]any, error) {
	if body == nil {
		return nil, domain.ErrNoMessages
	}
	if hasMessages(body) {
		return body, nil
	}

	text, err := serialize(body)
	if err != nil {
		text = fmt.Sprint(body)
	}

	model := defaultModel
	if m, ok := body["model"].(string); ok && m != "" {
		model = m
	}

	return map[string]any{
		"model": model,
		"messages": []domain.Message{
			{Role: domain.RoleSystem, Content: BackendPrompt},
			{Role: domain.RoleUser, Content: truncate(text, MaxWrappedChars)},
		},
	}, nil
}

// hasMessages reports whether payload["messages"] is a non-empty list.
func hasMessages(payload map[string]any) bool {
	switch msgs := payload["messages"].(type) {
	case []any:
		return len(msgs) > 0
	case []domain.Message:
		return len(msgs) > 0
	default:
		return false
	}
}

func messageCount(payload map[string]any) int {
	switch msgs := payload["messages"].(type) {
	case []any:
		return len(msgs)
	case []domain.Message:
		return len(msgs)
	default:
		return 0
	}
}

// serialize encodes v as compact JSON without HTML escaping.
func serialize(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
