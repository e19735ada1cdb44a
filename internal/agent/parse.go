package agent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractJSONArray pulls a JSON array out of a completion. It first tries the
// whole content as JSON, then falls back to the outermost bracketed span.
// Models wrap arrays in prose or markdown fences often enough that the
// lenient pass is required in practice.
func ExtractJSONArray(agentType Type, content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)

	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "[") {
		return json.RawMessage(trimmed), nil
	}

	match := jsonArrayPattern.FindString(trimmed)
	if match != "" && json.Valid([]byte(match)) {
		return json.RawMessage(match), nil
	}

	return nil, &MalformedResponseError{
		AgentType: agentType,
		Reason:    "no JSON array found in completion",
		Raw:       content,
	}
}

// ParseIDList parses a completion into a list of integer IDs. It accepts a
// JSON array of integers, then falls back to scanning for bare integers
// separated by whitespace, commas or semicolons.
func ParseIDList(agentType Type, content string) ([]int64, error) {
	if raw, err := ExtractJSONArray(agentType, content); err == nil {
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err == nil {
			return ids, nil
		}
	}

	var ids []int64
	for _, part := range strings.FieldsFunc(content, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\n' || r == '\t' || r == '\r'
	}) {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, &MalformedResponseError{
			AgentType: agentType,
			Reason:    "no integer IDs found in completion",
			Raw:       content,
		}
	}
	return ids, nil
}

// ParseStringList parses a completion into a list of strings. It accepts a
// JSON array of strings, then falls back to comma splitting.
func ParseStringList(agentType Type, content string) ([]string, error) {
	if raw, err := ExtractJSONArray(agentType, content); err == nil {
		var items []string
		if err := json.Unmarshal(raw, &items); err == nil {
			result := make([]string, 0, len(items))
			for _, item := range items {
				if trimmed := strings.TrimSpace(item); trimmed != "" {
					result = append(result, trimmed)
				}
			}
			if len(result) > 0 {
				return result, nil
			}
		}
	}

	var items []string
	for _, part := range strings.Split(content, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}

	if len(items) == 0 {
		return nil, &MalformedResponseError{
			AgentType: agentType,
			Reason:    "no strings found in completion",
			Raw:       content,
		}
	}
	return items, nil
}

// DedupeIDs removes duplicate IDs, keeping first occurrence order.
func DedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
