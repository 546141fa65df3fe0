// Package pipeline runs one event through the full chain: parse and
// validate, security gate, transcript analysis, categorization, persistence.
// One invocation is one pass; the only cross-invocation state is the
// append-only audit log and the shared rate-limit store.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"hooktrail/internal/classify"
	"hooktrail/internal/config"
	"hooktrail/internal/history"
	"hooktrail/internal/logging"
	"hooktrail/internal/privacy"
	"hooktrail/internal/ratelimit"
	"hooktrail/internal/security"
	"hooktrail/internal/transcript"
	"hooktrail/pkg/hookevent"
	"hooktrail/pkg/hooks"

	"github.com/rs/zerolog"
)

// Runner owns the wired pipeline components for one invocation.
type Runner struct {
	cfg    *config.Config
	gate   *security.Gate
	engine *classify.Engine
	writer *history.Writer
	store  *ratelimit.Store
	log    zerolog.Logger
}

// New wires a runner from configuration. Rate limiting prefers a running
// hooktraild (long-lived in-memory counters); without one it uses the
// SQLite-backed store so counters still accumulate across the short-lived
// hook processes.
func New(cfg *config.Config) (*Runner, error) {
	log := logging.Component("pipeline")

	rules, err := classify.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Warn().Err(err).Msg("rules file unusable, falling back to built-in rules")
		rules = classify.DefaultRules()
	}

	audit := history.NewAuditLogger(cfg.LogRoot)

	var limiter security.Limiter
	var store *ratelimit.Store
	if hooks.IsWorkerRunning(cfg.WorkerPort) {
		limiter = hooks.NewWorkerLimiter(cfg.WorkerPort)
	} else {
		store, err = ratelimit.OpenStore(cfg.StatePath, cfg.RateLimitMax, windowDuration(cfg))
		if err != nil {
			log.Warn().Err(err).Msg("rate-limit store unavailable, counters will not persist")
			limiter = ratelimit.NewMemory(cfg.RateLimitMax, windowDuration(cfg))
		} else {
			limiter = store
		}
	}

	return &Runner{
		cfg:    cfg,
		gate:   security.NewGate(limiter, audit, cfg.AllowedTranscriptDirs),
		engine: classify.NewEngine(rules),
		writer: history.NewWriter(cfg.HistoryRoot),
		store:  store,
		log:    log,
	}, nil
}

// Close releases the rate-limit store if this runner opened one.
func (r *Runner) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// Process runs one raw input through the chain and returns the process exit
// code. Structural errors stop before the gate; gate rejections stop before
// any history write; a missing transcript degrades to the default
// categorization instead of dropping the event.
func (r *Runner) Process(raw []byte) int {
	event := hookevent.Parse(raw)

	if err := event.Validate(); err != nil {
		r.log.Error().Str("session_id", event.SessionID).Msg(err.Error())
		return hooks.ExitRejected
	}

	if err := r.gate.Check(event); err != nil {
		return hooks.ExitRejected
	}

	analysis := r.analyzeTranscript(event)
	signals := classify.SignalsFromAnalysis(analysis)
	result := r.engine.Categorize(signals)

	path, err := r.writer.Write(result, documentBody(event, signals), event.Timestamp)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to write history record")
		return hooks.ExitFailure
	}

	r.log.Info().
		Str("category", result.Category).
		Str("session_id", event.SessionID).
		Str("path", path).
		Msg("event captured")
	return hooks.ExitSuccess
}

// analyzeTranscript parses the event's lazily-loaded transcript. A missing
// or unreadable file is a warning, not a failure: the audit trail must still
// record that the lifecycle event happened.
func (r *Runner) analyzeTranscript(event *hookevent.Event) *transcript.Analysis {
	content, err := event.Transcript()
	if err != nil {
		r.log.Warn().Err(err).Str("path", event.TranscriptPath).
			Msg("transcript unreadable, continuing with empty transcript")
		return transcript.ParseString("")
	}
	return transcript.ParseString(content)
}

// documentBody assembles the free-text portion of the history record from
// the captured conversation.
func documentBody(event *hookevent.Event, signals classify.Signals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nEvent: %s\n", event.SessionID, event.Type)
	userMsg := privacy.Clean(signals.UserMessage)
	assistantMsg := privacy.Clean(signals.AssistantMessage)
	if userMsg != "" {
		b.WriteString("\n## Last user message\n\n")
		b.WriteString(userMsg)
		b.WriteString("\n")
	}
	if assistantMsg != "" {
		b.WriteString("\n## Last assistant message\n\n")
		b.WriteString(assistantMsg)
		b.WriteString("\n")
	}
	if userMsg == "" && assistantMsg == "" {
		b.WriteString("\nNo conversation content was available for this event.\n")
	}
	return b.String()
}

func windowDuration(cfg *config.Config) time.Duration {
	return time.Duration(cfg.RateLimitWindowSec) * time.Second
}
