// Package hookevent defines the lifecycle event model shared by every hook
// entry point: parsing raw host input, type inference and validation.
package hookevent

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Type identifies a lifecycle notification emitted by the host.
type Type string

// Lifecycle event types delivered by the host.
const (
	SessionStart     Type = "SessionStart"
	SessionEnd       Type = "SessionEnd"
	PreToolUse       Type = "PreToolUse"
	PostToolUse      Type = "PostToolUse"
	Stop             Type = "Stop"
	SubagentStop     Type = "SubagentStop"
	PreCompact       Type = "PreCompact"
	UserPromptSubmit Type = "UserPromptSubmit"
)

var knownTypes = map[Type]struct{}{
	SessionStart:     {},
	SessionEnd:       {},
	PreToolUse:       {},
	PostToolUse:      {},
	Stop:             {},
	SubagentStop:     {},
	PreCompact:       {},
	UserPromptSubmit: {},
}

// KnownType reports whether t is one of the lifecycle event types.
func KnownType(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

// SessionIDPattern is the only accepted shape for host session identifiers.
var SessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Event is one lifecycle notification. It lives for a single invocation and
// is never persisted as-is; only the derived categorization record and the
// audit trail survive it.
type Event struct {
	ID             string
	Type           Type
	Timestamp      time.Time
	SessionID      string
	Payload        map[string]any
	TranscriptPath string
	Metadata       map[string]string

	transcript       string
	transcriptLoaded bool
}

// ValidationError describes a failed event invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// Parse turns one raw JSON object from the host into an Event. It never
// fails: unparseable input yields a fallback event carrying the parse error
// in Metadata and a sentinel session id, so the pipeline always has
// something to validate and reject cleanly.
func Parse(raw []byte) *Event {
	ev := &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{},
		Metadata:  map[string]string{},
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		ev.SessionID = "parse-error"
		ev.Metadata["parse_error"] = err.Error()
		return ev
	}
	ev.Payload = payload

	if s, ok := payload["session_id"].(string); ok {
		ev.SessionID = s
	}
	if p, ok := payload["transcript_path"].(string); ok {
		ev.TranscriptPath = p
	}
	if ts, ok := payload["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			ev.Timestamp = parsed
		}
	}

	ev.Type = eventType(payload)
	return ev
}

// eventType reads the explicit type field, falling back to inference from
// the payload shape when the host omitted it.
func eventType(payload map[string]any) Type {
	for _, key := range []string{"type", "hook_event_name"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return Type(s)
		}
	}
	if _, ok := payload["transcript_path"]; ok {
		return Stop
	}
	if _, ok := payload["tool_name"]; ok {
		return PreToolUse
	}
	return Stop
}

// Validate checks the required-field and type-specific invariants. It has no
// side effects; the security gate re-runs the structural checks before any
// write happens.
func (e *Event) Validate() error {
	if e.Type == "" {
		return &ValidationError{Field: "type", Reason: "is missing"}
	}
	if !KnownType(e.Type) {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a lifecycle event type", e.Type)}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "is missing"}
	}
	if e.SessionID == "" {
		return &ValidationError{Field: "session_id", Reason: "is missing"}
	}
	if !SessionIDPattern.MatchString(e.SessionID) {
		return &ValidationError{Field: "session_id", Reason: "contains characters outside [A-Za-z0-9_-]"}
	}
	if e.NeedsTranscript() && e.TranscriptPath == "" {
		return &ValidationError{Field: "transcript_path", Reason: fmt.Sprintf("is required for %s events", e.Type)}
	}
	return nil
}

// NeedsTranscript reports whether this event type must carry a transcript path.
func (e *Event) NeedsTranscript() bool {
	return e.Type == Stop || e.Type == SubagentStop
}

// Transcript lazily loads the transcript file content, expanding a leading
// ~. The result is cached for the lifetime of the event; a missing or
// unreadable file returns the error once and an empty string on later calls.
func (e *Event) Transcript() (string, error) {
	if e.transcriptLoaded {
		return e.transcript, nil
	}
	e.transcriptLoaded = true
	if e.TranscriptPath == "" {
		return "", nil
	}
	path := e.TranscriptPath
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path confinement is enforced by the security gate first
	if err != nil {
		return "", err
	}
	e.transcript = string(data)
	return e.transcript, nil
}

// SerializedPayload renders the payload back to JSON for pattern scanning.
func (e *Event) SerializedPayload() string {
	if len(e.Payload) == 0 {
		return ""
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Sprintf("%v", e.Payload)
	}
	return string(data)
}
