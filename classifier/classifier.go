// Package classifier turns free-form chat text into a structured tool call.
// The classification itself runs in an external model service; this package
// owns the unforgiving part, parsing and validating whatever the model
// produced before any other component may see it.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrParseFailure = errors.New("classifier: failed to parse tool call from model output")

// ToolCall is the tagged union the rest of the system consumes. Tool is one
// of the names in knownTools; Params has been checked for the tool's
// required fields but values keep their JSON types.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// requiredParams lists what each tool cannot run without. Tools absent from
// the map take no required parameters.
var requiredParams = map[string][]string{
	"mint":         {"token"},
	"transfer":     {"token", "recipient", "amount"},
	"swap":         {"from_token", "to_token", "amount"},
	"create_alert": {"token", "condition", "threshold"},
}

var knownTools = map[string]bool{
	"mint":               true,
	"transfer":           true,
	"swap":               true,
	"get_balances":       true,
	"get_transactions":   true,
	"get_wallet_summary": true,
	"create_alert":       true,
	"list_alerts":        true,
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")

// Parse extracts a tool call from raw model output. Models wrap JSON in
// prose or code fences more often than not, so after a direct unmarshal it
// tries a fenced block and then the first balanced JSON object in the text.
func Parse(text string) (ToolCall, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ToolCall{}, ErrParseFailure
	}

	var lastErr error
	for _, candidate := range candidates(text) {
		tc, err := unmarshalAndValidate([]byte(candidate))
		if err == nil {
			return tc, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return ToolCall{}, lastErr
	}
	return ToolCall{}, ErrParseFailure
}

func candidates(text string) []string {
	out := []string{text}
	if block := extractFromCodeBlock(text); block != "" {
		out = append(out, block)
	}
	if obj := extractJSONObject(text); obj != "" {
		out = append(out, obj)
	}
	return out
}

func unmarshalAndValidate(data []byte) (ToolCall, error) {
	var tc ToolCall
	if err := json.Unmarshal(data, &tc); err != nil {
		return ToolCall{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if !knownTools[tc.Tool] {
		return ToolCall{}, fmt.Errorf("%w: unknown tool %q", ErrParseFailure, tc.Tool)
	}
	for _, key := range requiredParams[tc.Tool] {
		v, ok := tc.Params[key]
		if !ok {
			return ToolCall{}, fmt.Errorf("%w: tool %s missing param %q", ErrParseFailure, tc.Tool, key)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return ToolCall{}, fmt.Errorf("%w: tool %s has empty param %q", ErrParseFailure, tc.Tool, key)
		}
	}
	if tc.Params == nil {
		tc.Params = map[string]any{}
	}
	return tc, nil
}

func extractFromCodeBlock(text string) string {
	matches := codeBlockRe.FindStringSubmatch(text)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
