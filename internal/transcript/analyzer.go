// Package transcript parses host conversation transcripts: newline-delimited
// JSON, one turn per line, each with a role and a content array of typed
// blocks. Unparseable lines are skipped rather than failing the parse.
package transcript

import (
	"bufio"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// Block is one typed content block inside a turn.
type Block struct {
	Type  string
	Text  string
	Name  string
	Input map[string]any
}

// Turn is one conversation turn.
type Turn struct {
	Role   string
	Blocks []Block
}

// ToolInvocation is a tool_use block lifted out of an assistant turn.
type ToolInvocation struct {
	Name  string
	Input map[string]any
}

// Analysis holds the parsed turns of one transcript and answers the
// extraction queries the categorization engine needs. All "last X" queries
// scan tail-to-head and stop at the first match: the most recent relevant
// turn always determines the result.
type Analysis struct {
	turns []Turn
}

// rawLine mirrors the host transcript line shape. Content can be a plain
// string or an array of typed blocks.
type rawLine struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content any    `json:"content"`
	Message *struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"message"`
}

// Parse reads newline-delimited JSON turns. It never fails: bad lines are
// skipped, and an empty reader yields an empty analysis.
func Parse(r io.Reader) *Analysis {
	a := &Analysis{}

	scanner := bufio.NewScanner(r)
	// Assistant turns can carry very large messages
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var raw rawLine
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		turn, ok := raw.toTurn()
		if !ok {
			continue
		}
		a.turns = append(a.turns, turn)
	}
	return a
}

// ParseString parses transcript content already in memory.
func ParseString(content string) *Analysis {
	return Parse(strings.NewReader(content))
}

func (r *rawLine) toTurn() (Turn, bool) {
	role := r.Role
	content := r.Content
	if r.Message != nil {
		role = r.Message.Role
		content = r.Message.Content
	}
	switch role {
	case "user", "assistant", "system":
	default:
		return Turn{}, false
	}
	return Turn{Role: role, Blocks: parseBlocks(content)}, true
}

func parseBlocks(content any) []Block {
	switch v := content.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []Block{{Type: "text", Text: v}}
	case []any:
		var blocks []Block
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			block := Block{}
			block.Type, _ = m["type"].(string)
			switch block.Type {
			case "text":
				block.Text, _ = m["text"].(string)
			case "tool_use":
				block.Name, _ = m["name"].(string)
				if input, ok := m["input"].(map[string]any); ok {
					block.Input = input
				}
			case "tool_result":
			default:
				continue
			}
			blocks = append(blocks, block)
		}
		return blocks
	}
	return nil
}

// Turns returns the parsed turns in original order.
func (a *Analysis) Turns() []Turn {
	return a.turns
}

// Empty reports whether the transcript produced no turns.
func (a *Analysis) Empty() bool {
	return len(a.turns) == 0
}

// LastAssistantMessage returns the text of the most recent assistant turn
// containing a non-empty text block, or "".
func (a *Analysis) LastAssistantMessage() string {
	return a.lastMessage("assistant")
}

// LastUserMessage returns the text of the most recent user turn containing a
// non-empty text block, or "".
func (a *Analysis) LastUserMessage() string {
	return a.lastMessage("user")
}

func (a *Analysis) lastMessage(role string) string {
	for i := len(a.turns) - 1; i >= 0; i-- {
		if a.turns[i].Role != role {
			continue
		}
		if text := turnText(a.turns[i]); text != "" {
			return text
		}
	}
	return ""
}

func turnText(t Turn) string {
	var parts []string
	for _, b := range t.Blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolInvocations returns every tool_use block across assistant turns, in
// original order.
func (a *Analysis) ToolInvocations() []ToolInvocation {
	var invocations []ToolInvocation
	for _, turn := range a.turns {
		if turn.Role != "assistant" {
			continue
		}
		for _, b := range turn.Blocks {
			if b.Type == "tool_use" && b.Name != "" {
				invocations = append(invocations, ToolInvocation{Name: b.Name, Input: b.Input})
			}
		}
	}
	return invocations
}

// DetectedAgentType returns the subagent_type of the most recent Task tool
// invocation that carries one, or "" when no sub-agent was dispatched. Task
// blocks without a subagent_type input are skipped so an untyped dispatch
// cannot mask an earlier typed one.
func (a *Analysis) DetectedAgentType() string {
	for i := len(a.turns) - 1; i >= 0; i-- {
		turn := a.turns[i]
		if turn.Role != "assistant" {
			continue
		}
		for j := len(turn.Blocks) - 1; j >= 0; j-- {
			b := turn.Blocks[j]
			if b.Type != "tool_use" || b.Name != "Task" {
				continue
			}
			if subagent, ok := b.Input["subagent_type"].(string); ok && subagent != "" {
				return subagent
			}
		}
	}
	return ""
}

// TaskDescription prefers the prompt of the most recent Task invocation and
// falls back to the last user message.
func (a *Analysis) TaskDescription() string {
	if task := a.lastTaskInvocation(); task != nil {
		if prompt, ok := task.Input["prompt"].(string); ok && prompt != "" {
			return prompt
		}
		if desc, ok := task.Input["description"].(string); ok && desc != "" {
			return desc
		}
	}
	return a.LastUserMessage()
}

func (a *Analysis) lastTaskInvocation() *ToolInvocation {
	for i := len(a.turns) - 1; i >= 0; i-- {
		turn := a.turns[i]
		if turn.Role != "assistant" {
			continue
		}
		for j := len(turn.Blocks) - 1; j >= 0; j-- {
			b := turn.Blocks[j]
			if b.Type == "tool_use" && b.Name == "Task" {
				return &ToolInvocation{Name: b.Name, Input: b.Input}
			}
		}
	}
	return nil
}
