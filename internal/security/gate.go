package security

import (
	"fmt"
	"time"

	"hooktrail/internal/logging"
	"hooktrail/pkg/hookevent"

	"github.com/rs/zerolog"
)

// RejectionError is returned by Check when the gate refuses an event. The
// entry point maps it to a nonzero exit; the matching audit record has
// already been appended by the time Check returns.
type RejectionError struct {
	Severity Severity
	Type     string
	Details  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("event rejected (%s/%s): %s", e.Severity, e.Type, e.Details)
}

// Gate is the single choke point in front of all side effects. Every entry
// point invokes it identically, so rejected events still leave a complete
// audit trail while never reaching the persistence layer.
type Gate struct {
	limiter     Limiter
	audit       AuditSink
	allowedDirs []string
	log         zerolog.Logger
}

// NewGate wires a gate over a rate limiter, an audit sink and the allowed
// transcript base directories.
func NewGate(limiter Limiter, audit AuditSink, allowedDirs []string) *Gate {
	return &Gate{
		limiter:     limiter,
		audit:       audit,
		allowedDirs: allowedDirs,
		log:         logging.Component("gate"),
	}
}

// Check runs the short-circuiting chain: rate limit, structural
// re-validation, malicious-pattern scan, transcript path confinement. On
// success it appends one low-severity allow record and returns nil.
func (g *Gate) Check(e *hookevent.Event) error {
	hookName := string(e.Type)

	allowed, err := g.limiter.Allow(hookName)
	if err != nil {
		// A broken counter store must not drop an otherwise-valid event.
		g.log.Warn().Err(err).Msg("rate limiter unavailable, continuing without throttling")
	} else if !allowed {
		return g.reject(e, SeverityHigh, TypeRateLimitExceeded,
			fmt.Sprintf("hook %q exceeded its call budget for the current window", hookName))
	}

	if err := e.Validate(); err != nil {
		rejType := TypeInvalidStructure
		if verr, ok := err.(*hookevent.ValidationError); ok && verr.Field == "session_id" {
			rejType = TypeInvalidSessionID
		}
		return g.reject(e, SeverityHigh, rejType, err.Error())
	}

	if matches := ScanPayload(e.SerializedPayload()); len(matches) > 0 {
		details := fmt.Sprintf("payload matched %d threat pattern(s), first: %s (%q)",
			len(matches), matches[0].Family, matches[0].Excerpt)
		return g.reject(e, SeverityCritical, matches[0].Family, details)
	}

	if e.TranscriptPath != "" {
		if rej := confineTranscriptPath(e.TranscriptPath, g.allowedDirs); rej != nil {
			return g.reject(e, rej.Severity, rej.Type, rej.Details)
		}
	}

	g.appendAudit(Event{
		Timestamp: time.Now().UTC(),
		Severity:  SeverityLow,
		Type:      TypeEventAllowed,
		Details:   fmt.Sprintf("event %s passed all checks", e.ID),
		HookName:  hookName,
		SessionID: e.SessionID,
	})
	return nil
}

func (g *Gate) reject(e *hookevent.Event, severity Severity, rejType, details string) error {
	g.log.Error().
		Str("type", rejType).
		Str("severity", string(severity)).
		Str("session_id", e.SessionID).
		Msg(details)
	g.appendAudit(Event{
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Type:      rejType,
		Details:   details,
		HookName:  string(e.Type),
		SessionID: e.SessionID,
	})
	return &RejectionError{Severity: severity, Type: rejType, Details: details}
}

func (g *Gate) appendAudit(ev Event) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Append(ev); err != nil {
		g.log.Warn().Err(err).Msg("failed to append audit record")
	}
}
