package command

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"mobridge/internal/models"
)

var listItemRegex = regexp.MustCompile(`^\s*[-*]\s+(?:\[[ xX]\]\s+)?(.*)$`)

// taskFrontMatter is the yaml front-matter accepted by task-import.
// Values apply to every task parsed from the document body.
type taskFrontMatter struct {
	Feature  string `yaml:"feature"`
	Priority *int   `yaml:"priority"`
	Estimate *int   `yaml:"estimate"`
	Selected *bool  `yaml:"selected"`
}

// parseTaskMarkdown splits a markdown document into front-matter defaults
// and one task title per list item. Checkbox prefixes are stripped.
func parseTaskMarkdown(input string) (taskFrontMatter, []string, error) {
	var front taskFrontMatter
	content := input

	lines := strings.Split(input, "\n")
	if len(lines) >= 3 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return front, nil, fmt.Errorf("front matter not closed")
		}
		frontText := strings.Join(lines[1:end], "\n")
		if err := yaml.Unmarshal([]byte(frontText), &front); err != nil {
			return front, nil, fmt.Errorf("parse front matter: %w", err)
		}
		content = strings.Join(lines[end+1:], "\n")
	}

	if front.Priority != nil && !models.IsValidPriority(*front.Priority) {
		return front, nil, fmt.Errorf("priority must be between %d and %d",
			models.PriorityMin, models.PriorityMax)
	}
	if front.Estimate != nil && !models.IsValidEstimate(*front.Estimate) {
		return front, nil, fmt.Errorf("estimate must be between %d and %d",
			models.EstimateMin, models.EstimateMax)
	}

	var titles []string
	for _, line := range strings.Split(content, "\n") {
		match := listItemRegex.FindStringSubmatch(line)
		if len(match) == 2 {
			title := strings.TrimSpace(match[1])
			if title != "" {
				titles = append(titles, title)
			}
		}
	}
	return front, titles, nil
}
