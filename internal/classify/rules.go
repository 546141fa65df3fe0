// Package classify assigns processed events to the history taxonomy using an
// ordered first-match-wins chain of classifiers.
package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Categories form a closed set; every result lands in exactly one of them.
const (
	CategoryLearnings = "learnings"
	CategoryResearch  = "research"
	CategoryDecisions = "decisions"
	CategorySessions  = "sessions"
	CategoryExecution = "execution"
)

// Subcategories under execution.
const (
	SubFeatures  = "features"
	SubBugs      = "bugs"
	SubRefactors = "refactors"
)

// ValidCategory reports whether c belongs to the taxonomy.
func ValidCategory(c string) bool {
	switch c {
	case CategoryLearnings, CategoryResearch, CategoryDecisions, CategorySessions, CategoryExecution:
		return true
	}
	return false
}

// Rules is the tunable vocabulary of the engine. A rules.yaml can override
// any field; zero-value fields keep their defaults.
type Rules struct {
	// LearningKeywords is the problem-solving vocabulary. A message
	// matching at least LearningThreshold of them is a learning event no
	// matter what any later rule would say.
	LearningKeywords  []string `yaml:"learning_keywords"`
	LearningThreshold int      `yaml:"learning_threshold"`
	// AgentRoutes maps a detected sub-agent type to a category, optionally
	// in category/subcategory form.
	AgentRoutes map[string]string `yaml:"agent_routes"`
	// SearchTools are tool names whose use signals research activity.
	SearchTools []string `yaml:"search_tools"`
}

// DefaultRules returns the compiled-in vocabulary.
func DefaultRules() *Rules {
	return &Rules{
		LearningKeywords: []string{
			"fixed", "solved", "resolved", "realized", "discovered",
			"learned", "figured out", "turns out", "root cause",
			"error", "bug", "issue", "mistake", "debugged",
			"workaround", "solution", "gotcha", "the problem was",
		},
		LearningThreshold: 2,
		AgentRoutes: map[string]string{
			"researcher":      CategoryResearch,
			"web-researcher":  CategoryResearch,
			"investigator":    CategoryResearch,
			"architect":       CategoryDecisions,
			"planner":         CategoryDecisions,
			"engineer":        CategoryExecution + "/" + SubFeatures,
			"implementor":     CategoryExecution + "/" + SubFeatures,
			"debugger":        CategoryExecution + "/" + SubBugs,
			"refactorer":      CategoryExecution + "/" + SubRefactors,
			"general-purpose": CategorySessions,
		},
		SearchTools: []string{"WebSearch", "WebFetch", "Grep", "Glob"},
	}
}

// LoadRules reads a YAML rules file over the defaults. A missing file is not
// an error; a malformed one is.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var overrides Rules
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(overrides.LearningKeywords) > 0 {
		rules.LearningKeywords = overrides.LearningKeywords
	}
	if overrides.LearningThreshold > 0 {
		rules.LearningThreshold = overrides.LearningThreshold
	}
	if len(overrides.AgentRoutes) > 0 {
		rules.AgentRoutes = overrides.AgentRoutes
	}
	if len(overrides.SearchTools) > 0 {
		rules.SearchTools = overrides.SearchTools
	}
	return rules, nil
}
