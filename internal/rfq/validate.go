package rfq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeDraft checks model output against the draft contract before decoding it. Every
// item needs material_name, grade, dimensions, numeric quantities, an exact or substitute
// match status and string notes.
func DecodeDraft(content string) (Draft, error) {
	var raw any
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return Draft{}, ErrInvalidResponse.WithDetails("response is not JSON: " + err.Error())
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Draft{}, ErrInvalidResponse.WithDetails("Expected a JSON object")
	}
	items, ok := obj["items"].([]any)
	if !ok {
		return Draft{}, ErrInvalidResponse.WithDetails("Response missing items array")
	}
	draft := Draft{Items: make([]Suggestion, 0, len(items))}
	for i, it := range items {
		s, err := suggestion(it)
		if err != nil {
			return Draft{}, ErrInvalidResponse.WithDetails(fmt.Sprintf("item %d: %s", i+1, err))
		}
		draft.Items = append(draft.Items, s)
	}
	return draft, nil
}

// DecodeSummary reads a parsed RFQ. Materials without a name are dropped.
func DecodeSummary(content string) (Summary, error) {
	var summary Summary
	if err := json.Unmarshal([]byte(stripFences(content)), &summary); err != nil {
		return Summary{}, ErrInvalidResponse.WithDetails("response is not a parsed RFQ: " + err.Error())
	}
	kept := make([]RequestedMaterial, 0, len(summary.Materials))
	for _, m := range summary.Materials {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		kept = append(kept, m)
	}
	summary.Materials = kept
	return summary, nil
}

func suggestion(v any) (Suggestion, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Suggestion{}, errors.New("not an object")
	}
	var s Suggestion
	var err error
	if s.MaterialName, err = requiredString(m, "material_name"); err != nil {
		return Suggestion{}, err
	}
	if s.Grade, err = requiredString(m, "grade"); err != nil {
		return Suggestion{}, err
	}
	if s.Dimensions, err = requiredString(m, "dimensions"); err != nil {
		return Suggestion{}, err
	}
	if s.RequestedQuantity, err = number(m, "requested_quantity"); err != nil {
		return Suggestion{}, err
	}
	if s.AvailableQuantity, err = number(m, "available_quantity"); err != nil {
		return Suggestion{}, err
	}
	s.MatchStatus, _ = m["match_status"].(string)
	if s.MatchStatus != MatchExact && s.MatchStatus != MatchSubstitute {
		return Suggestion{}, fmt.Errorf("match_status must be %q or %q", MatchExact, MatchSubstitute)
	}
	notes, ok := m["notes"].(string)
	if !ok {
		return Suggestion{}, errors.New("notes must be a string")
	}
	s.Notes = notes
	return s, nil
}

func requiredString(m map[string]any, key string) (string, error) {
	s, _ := m[key].(string)
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("missing %s", key)
	}
	return s, nil
}

func number(m map[string]any, key string) (float64, error) {
	n, ok := m[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

// stripFences removes a markdown code fence some models wrap around JSON.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
