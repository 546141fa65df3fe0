package classify

import (
	"strings"

	"hooktrail/internal/textutil"
	"hooktrail/internal/transcript"
)

// FallbackTask is used when no task description could be extracted.
const FallbackTask = "Unknown task"

// Signals are the transcript-derived inputs to categorization.
type Signals struct {
	AssistantMessage string
	UserMessage      string
	AgentType        string
	TaskDescription  string
	ToolsUsed        []string
}

// SignalsFromAnalysis lifts the extraction queries out of a parsed transcript.
func SignalsFromAnalysis(a *transcript.Analysis) Signals {
	tools := make([]string, 0)
	for _, inv := range a.ToolInvocations() {
		tools = append(tools, inv.Name)
	}
	return Signals{
		AssistantMessage: a.LastAssistantMessage(),
		UserMessage:      a.LastUserMessage(),
		AgentType:        a.DetectedAgentType(),
		TaskDescription:  a.TaskDescription(),
		ToolsUsed:        tools,
	}
}

// Result is the categorization outcome. Category is always a member of the
// closed taxonomy.
type Result struct {
	Category        string
	Subcategory     string
	IsLearningEvent bool
	AgentType       string
	TaskDescription string
	ToolsUsed       []string
}

// classifier tries one rule; ok=false means "no match, ask the next one".
type classifier func(s Signals) (Result, bool)

// Engine runs the ordered classifier chain. Identical inputs always produce
// identical results: the chain is fixed, has no external calls and no
// randomness.
type Engine struct {
	rules *Rules
	chain []classifier
}

// NewEngine builds an engine over the given rules.
func NewEngine(rules *Rules) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	e := &Engine{rules: rules}
	e.chain = []classifier{
		e.classifyLearning,
		e.classifyAgentRoute,
		e.classifyContent,
	}
	return e
}

// Categorize applies the chain; the first matching rule determines category
// and subcategory, the default is sessions. The result always carries the
// detected agent type and the deduplicated tool list regardless of which
// rule matched.
func (e *Engine) Categorize(s Signals) Result {
	if s.AssistantMessage == "" {
		// Nothing to classify on; never fail the pipeline over it.
		return Result{
			Category:        CategorySessions,
			AgentType:       s.AgentType,
			TaskDescription: FallbackTask,
			ToolsUsed:       []string{},
		}
	}

	res := Result{Category: CategorySessions}
	for _, try := range e.chain {
		if matched, ok := try(s); ok {
			res = matched
			break
		}
	}

	res.AgentType = s.AgentType
	res.ToolsUsed = textutil.Dedupe(s.ToolsUsed)
	if res.ToolsUsed == nil {
		res.ToolsUsed = []string{}
	}
	res.TaskDescription = s.TaskDescription
	if res.TaskDescription == "" {
		res.TaskDescription = FallbackTask
	}
	return res
}

// classifyLearning fires when the assistant's final message carries enough
// problem-solving vocabulary. Highest priority: it overrides agent routes
// and content heuristics unconditionally.
func (e *Engine) classifyLearning(s Signals) (Result, bool) {
	hits := textutil.CountKeywords(s.AssistantMessage, e.rules.LearningKeywords)
	if hits < e.rules.LearningThreshold {
		return Result{}, false
	}
	return Result{Category: CategoryLearnings, IsLearningEvent: true}, true
}

// classifyAgentRoute maps a detected sub-agent type through the static route
// table. Routes to the default category are treated as no-match so content
// heuristics still get a say.
func (e *Engine) classifyAgentRoute(s Signals) (Result, bool) {
	if s.AgentType == "" {
		return Result{}, false
	}
	route, ok := e.rules.AgentRoutes[s.AgentType]
	if !ok || route == CategorySessions {
		return Result{}, false
	}
	category, sub := splitRoute(route)
	if !ValidCategory(category) {
		return Result{}, false
	}
	return Result{Category: category, Subcategory: sub}, true
}

// classifyContent applies the fixed-order keyword and tool-usage heuristics.
func (e *Engine) classifyContent(s Signals) (Result, bool) {
	msg := strings.ToLower(s.AssistantMessage)

	switch {
	case textutil.ContainsAny(msg, []string{"implement", "feature"}):
		return Result{Category: CategoryExecution, Subcategory: SubFeatures}, true
	case textutil.ContainsAny(msg, []string{"fix", "bug", "error"}):
		return Result{Category: CategoryExecution, Subcategory: SubBugs}, true
	case textutil.ContainsAny(msg, []string{"refactor", "restructure", "reorganize"}):
		return Result{Category: CategoryExecution, Subcategory: SubRefactors}, true
	case textutil.ContainsAny(msg, []string{"research", "investigate", "explore"}) || e.usedSearchTool(s.ToolsUsed):
		return Result{Category: CategoryResearch}, true
	case textutil.ContainsAny(msg, []string{"decision", "architecture", "design", "plan"}):
		return Result{Category: CategoryDecisions}, true
	}
	return Result{Category: CategorySessions}, true
}

func (e *Engine) usedSearchTool(tools []string) bool {
	for _, tool := range tools {
		for _, search := range e.rules.SearchTools {
			if tool == search {
				return true
			}
		}
	}
	return false
}

// splitRoute splits "execution/features" style routes.
func splitRoute(route string) (category, sub string) {
	if i := strings.IndexByte(route, '/'); i >= 0 {
		return route[:i], route[i+1:]
	}
	return route, ""
}
