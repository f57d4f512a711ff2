package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the parsed result of a classification completion.
type Verdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Message    string  `json:"message"`
}

// GameScan is the parsed result of a game-detection completion.
type GameScan struct {
	Detected   bool     `json:"detected"`
	Target     string   `json:"target"`
	Games      []string `json:"games"`
	Message    string   `json:"message"`
	Confidence float64  `json:"confidence"`
}

// ParseVerdict extracts a Verdict JSON object from an LLM response.
func ParseVerdict(content string) (*Verdict, error) {
	raw, err := jsonObject(content)
	if err != nil {
		return nil, err
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}
	v.Label = strings.ToUpper(strings.TrimSpace(v.Label))
	return &v, nil
}

// ParseGameScan extracts a GameScan JSON object from an LLM response.
func ParseGameScan(content string) (*GameScan, error) {
	raw, err := jsonObject(content)
	if err != nil {
		return nil, err
	}
	var g GameScan
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, fmt.Errorf("unmarshal game scan: %w", err)
	}
	return &g, nil
}

// jsonObject extracts the first JSON object from an LLM response.
// The response might contain markdown code fences or other wrapper text.
func jsonObject(content string) (string, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		// Remove first and last lines (```json and ```)
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return content[start : end+1], nil
}
