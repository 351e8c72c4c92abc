// Package parser normalises the downstream CLI's heterogeneous stdout into
// a single ParsedOutput shape. It is pure and total: it never throws on
// malformed input, per spec §4.2.
package parser

import (
	"encoding/json"
	"strings"

	"github.com/dazedpro/claude-cli-proxy/types"
)

const maxTurnsPhrase = "Reached max turns"

// Parse converts raw stdout into a normalised ParsedOutput, tolerating the
// shapes described in spec §4.2: a JSON string, an object with `result`,
// an object with `text`, a JSON array of conversation events, or plain text.
func Parse(raw string) types.ParsedOutput {
	trimmed := strings.TrimSpace(raw)

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return types.ParsedOutput{Text: trimmed}
	}

	if seq, ok := decoded.([]any); ok {
		decoded = selectFromSequence(seq, trimmed)
	}

	obj, isObj := decoded.(map[string]any)
	if isObj {
		if subtype, _ := obj["subtype"].(string); subtype == "error_max_turns" {
			return types.ParsedOutput{MaxTurnsExhausted: true}
		}
	}

	out := types.ParsedOutput{Text: extractText(decoded, trimmed)}
	if isObj {
		out.InputTokens, out.OutputTokens = extractTokens(obj)
		out.Model, _ = obj["model"].(string)
	}
	if strings.Contains(out.Text, maxTurnsPhrase) {
		out.MaxTurnsExhausted = true
	}
	return out
}

// selectFromSequence replaces a decoded JSON array with the single element
// the rest of the pipeline should treat as "the" value: the last element
// whose type is "result", else the last whose type is "assistant", else
// the first element, else (empty sequence) the raw trimmed text.
func selectFromSequence(seq []any, trimmed string) any {
	var lastResult, lastAssistant any
	for _, el := range seq {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		switch obj["type"] {
		case "result":
			lastResult = el
		case "assistant":
			lastAssistant = el
		}
	}
	if lastResult != nil {
		return lastResult
	}
	if lastAssistant != nil {
		return lastAssistant
	}
	if len(seq) > 0 {
		return seq[0]
	}
	return trimmed
}

// extractText implements step 5 of spec §4.2: a bare string value wins,
// then a `result` field (serialised if non-string), then a `text` field,
// then the raw trimmed output as a last resort.
func extractText(decoded any, trimmed string) string {
	if s, ok := decoded.(string); ok {
		return s
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return trimmed
	}

	if result, present := obj["result"]; present {
		if s, ok := result.(string); ok {
			return s
		}
		if encoded, err := json.Marshal(result); err == nil {
			return string(encoded)
		}
		return trimmed
	}

	if text, ok := obj["text"].(string); ok {
		return text
	}

	return trimmed
}

// extractTokens reads input/output token counts from either naming
// convention, preferring snake_case on conflict per spec §4.2 step 6.
func extractTokens(obj map[string]any) (input, output int) {
	input = firstInt(obj, "input_tokens", "inputTokens")
	output = firstInt(obj, "output_tokens", "outputTokens")
	return input, output
}

func firstInt(obj map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if n, ok := v.(float64); ok {
				return int(n)
			}
		}
	}
	return 0
}
