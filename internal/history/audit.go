package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"hooktrail/internal/security"

	"github.com/goccy/go-json"
)

// AuditFileName is the rolling audit log inside the log root.
const AuditFileName = "security-audit.jsonl"

// AuditLogger appends security events to the audit log, one JSON object per
// line. Each record is a single buffered write so concurrent writers from
// parallel hook processes cannot interleave partial lines; the file is
// opened O_APPEND and never rewritten, which is what keeps prior history
// safe across crashes.
type AuditLogger struct {
	path string
	mu   sync.Mutex
}

// NewAuditLogger returns a logger writing under logRoot.
func NewAuditLogger(logRoot string) *AuditLogger {
	return &AuditLogger{path: filepath.Join(logRoot, AuditFileName)}
}

// Path returns the audit log location.
func (l *AuditLogger) Path() string {
	return l.path
}

// Append writes one event as a single line.
func (l *AuditLogger) Append(ev security.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("append audit record: %w", werr)
	}
	return cerr
}

// Records reads back every parseable audit record, skipping corrupt lines.
// Used by the worker stats endpoint; the pipeline itself never reads the log.
func (l *AuditLogger) Records() ([]security.Event, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []security.Event
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		var ev security.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
