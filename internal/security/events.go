// Package security implements the gate every event passes before any side
// effect occurs: rate limiting, structural re-validation, malicious-pattern
// scanning and transcript path confinement. Every decision, allow or reject,
// lands in the append-only audit log.
package security

import "time"

// Severity grades an audit event.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Audit event types emitted by the gate.
const (
	TypeEventAllowed      = "event_allowed"
	TypeRateLimitExceeded = "rate_limit_exceeded"
	TypeInvalidStructure  = "invalid_structure"
	TypeInvalidSessionID  = "invalid_session_id"
	TypePathTraversal     = "path_traversal"
	TypeSensitiveFile     = "sensitive_file"
)

// Event is one append-only audit record. Once written it is never mutated
// or deleted.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
	HookName  string    `json:"hookName,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
}

// AuditSink receives audit events. The history package provides the JSONL
// implementation.
type AuditSink interface {
	Append(Event) error
}

// Limiter answers whether a hook name is within its call budget.
type Limiter interface {
	Allow(hookName string) (bool, error)
}
