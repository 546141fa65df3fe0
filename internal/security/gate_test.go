package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hooktrail/pkg/hookevent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink captures audit events for assertions.
type memorySink struct {
	events []Event
}

func (s *memorySink) Append(ev Event) error {
	s.events = append(s.events, ev)
	return nil
}

// allowAll is the permissive limiter used when a test targets other stages.
type allowAll struct{}

func (allowAll) Allow(string) (bool, error) { return true, nil }

type denyAll struct{}

func (denyAll) Allow(string) (bool, error) { return false, nil }

type brokenLimiter struct{}

func (brokenLimiter) Allow(string) (bool, error) { return false, errors.New("store is gone") }

func validEvent(t *testing.T, transcriptDir string) *hookevent.Event {
	t.Helper()
	return &hookevent.Event{
		ID:             "ev-1",
		Type:           hookevent.Stop,
		Timestamp:      time.Now(),
		SessionID:      "abc-123",
		Payload:        map[string]any{"session_id": "abc-123"},
		TranscriptPath: filepath.Join(transcriptDir, "t.jsonl"),
	}
}

func TestCheck_AllowsCleanEvent(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{dir})

	err := gate.Check(validEvent(t, dir))
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, SeverityLow, sink.events[0].Severity)
	assert.Equal(t, TypeEventAllowed, sink.events[0].Type)
	assert.Equal(t, "Stop", sink.events[0].HookName)
	assert.Equal(t, "abc-123", sink.events[0].SessionID)
}

func TestCheck_RateLimited(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(denyAll{}, sink, []string{dir})

	err := gate.Check(validEvent(t, dir))
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, SeverityHigh, rej.Severity)
	assert.Equal(t, TypeRateLimitExceeded, rej.Type)

	require.Len(t, sink.events, 1)
	assert.Equal(t, TypeRateLimitExceeded, sink.events[0].Type)
}

func TestCheck_BrokenLimiterDoesNotReject(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(brokenLimiter{}, sink, []string{dir})

	assert.NoError(t, gate.Check(validEvent(t, dir)))
}

func TestCheck_InvalidSessionID(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{dir})

	ev := validEvent(t, dir)
	ev.SessionID = "abc;rm -rf"

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, SeverityHigh, rej.Severity)
	assert.Equal(t, TypeInvalidSessionID, rej.Type)
}

func TestCheck_StructuralFailure(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{dir})

	ev := validEvent(t, dir)
	ev.TranscriptPath = "" // Stop events must carry one

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, TypeInvalidStructure, rej.Type)
}

func TestCheck_MaliciousPayload(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"command injection", map[string]any{"cmd": "ls; rm -rf /"}},
		{"command substitution", map[string]any{"cmd": "$(cat /etc/passwd)"}},
		{"path traversal", map[string]any{"path": "../../secrets"}},
		{"script injection", map[string]any{"note": "<script>alert(1)</script>"}},
		{"sql injection", map[string]any{"q": "1 UNION SELECT password FROM users"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			gate := NewGate(allowAll{}, sink, []string{dir})

			ev := validEvent(t, dir)
			ev.Payload = tt.payload

			err := gate.Check(ev)
			var rej *RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, SeverityCritical, rej.Severity)

			require.Len(t, sink.events, 1)
			assert.Equal(t, SeverityCritical, sink.events[0].Severity)
		})
	}
}

func TestCheck_PathOutsideAllowedDirs(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{allowed})

	ev := validEvent(t, other)

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, SeverityHigh, rej.Severity)
	assert.Equal(t, TypePathTraversal, rej.Type)
}

func TestCheck_SensitiveTranscriptPath(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{dir})

	ev := validEvent(t, dir)
	ev.TranscriptPath = filepath.Join(dir, ".ssh/id_rsa")

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, SeverityCritical, rej.Severity)
	assert.Equal(t, TypeSensitiveFile, rej.Type)
}

func TestCheck_TraversalEscapingAllowedBase(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{dir})

	ev := validEvent(t, dir)
	ev.TranscriptPath = filepath.Join(dir, "..", "..", "elsewhere", "t.jsonl")

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, TypePathTraversal, rej.Type)
}

func TestCheck_SymlinkEscapingAllowedBase(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{allowed})

	target := filepath.Join(outside, "secret.jsonl")
	require.NoError(t, os.WriteFile(target, []byte("{}\n"), 0600))
	link := filepath.Join(allowed, "t.jsonl")
	require.NoError(t, os.Symlink(target, link))

	ev := validEvent(t, allowed)
	ev.TranscriptPath = link

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, TypePathTraversal, rej.Type)
}

func TestCheck_SymlinkedDirEscapingAllowedBase(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	sink := &memorySink{}
	gate := NewGate(allowAll{}, sink, []string{allowed})

	// The linked directory resolves outside the base even though the
	// transcript itself does not exist yet.
	link := filepath.Join(allowed, "projects")
	require.NoError(t, os.Symlink(outside, link))

	ev := validEvent(t, allowed)
	ev.TranscriptPath = filepath.Join(link, "t.jsonl")

	err := gate.Check(ev)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, TypePathTraversal, rej.Type)
}

func TestCheck_NilAuditSinkStillDecides(t *testing.T) {
	dir := t.TempDir()
	gate := NewGate(allowAll{}, nil, []string{dir})
	assert.NoError(t, gate.Check(validEvent(t, dir)))
}
