package scripts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

// Instructions is the system prompt shared by model-backed generators.
//
//go:embed instructions.tmpl
var Instructions string

// Prompt renders the request as the user prompt for a language model.
func (r Request) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", r.Topic)
	if r.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", r.Goal)
	}
	if r.Mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", r.Mood)
	}
	if r.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", r.Language)
	}
	if r.DurationMinutes > 0 {
		fmt.Fprintf(&b, "Target duration: %.1f minutes\n", r.DurationMinutes)
	}
	for key, value := range r.Notes {
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	return b.String()
}

// ParseJSON decodes a model response into a script. Markdown code fences
// around the document are tolerated.
func ParseJSON(content string) (*Script, error) {
	content = strings.TrimSpace(content)
	split := strings.Split(content, "```")
	if len(split) > 1 {
		content = strings.TrimPrefix(strings.TrimSpace(split[1]), "json")
	}

	var script Script
	if err := json.Unmarshal([]byte(content), &script); err != nil {
		return nil, fmt.Errorf("error unmarshalling script: %w", err)
	}
	return &script, nil
}
