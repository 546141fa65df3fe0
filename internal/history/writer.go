// Package history renders categorization results into dated, categorized
// markdown documents and maintains the append-only security audit log. Both
// are append-only surfaces: re-delivering an event can only add files or
// lines, never overwrite prior history.
package history

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hooktrail/internal/classify"
	"hooktrail/internal/logging"
	"hooktrail/internal/textutil"

	"github.com/rs/zerolog"
)

const (
	taskHeaderLimit = 200
	slugLimit       = 60
	learningBanner  = "** LEARNING EVENT **"
	headerDelimiter = "---"
)

// Writer persists categorized records under a history root.
type Writer struct {
	root string
	log  zerolog.Logger
}

// NewWriter returns a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{root: dir, log: logging.Component("history")}
}

// Write renders the result plus the raw message body into a new document and
// returns its path. The path is derived deterministically from category,
// subcategory and year-month; the filename from the event timestamp and a
// slug of the task description. An existing file is never overwritten: name
// collisions get a numeric suffix so duplicate deliveries stay independent.
func (w *Writer) Write(res classify.Result, body string, ts time.Time) (string, error) {
	dir := filepath.Join(w.root, res.Category)
	if res.Subcategory != "" {
		dir = filepath.Join(dir, res.Subcategory)
	}
	dir = filepath.Join(dir, ts.UTC().Format("2006-01"))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	stamp := ts.UTC().Format("2006-01-02T15-04-05")
	slug := textutil.Slugify(res.TaskDescription, slugLimit)
	content := Render(res, body, ts)

	for i := 0; ; i++ {
		name := fmt.Sprintf("%s_%s.md", stamp, slug)
		if i > 0 {
			name = fmt.Sprintf("%s_%s_%d.md", stamp, slug, i)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create history file: %w", err)
		}
		_, werr := f.Write(content)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("write history file: %w", werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("close history file: %w", cerr)
		}
		w.log.Debug().Str("path", path).Str("category", res.Category).Msg("wrote history record")
		return path, nil
	}
}

// Render produces the document: a key-value header block between ---
// delimiters, a learning banner when applicable, then the body text.
func Render(res classify.Result, body string, ts time.Time) []byte {
	var b bytes.Buffer
	b.WriteString(headerDelimiter + "\n")
	fmt.Fprintf(&b, "timestamp: %s\n", ts.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "category: %s\n", res.Category)
	if res.Subcategory != "" {
		fmt.Fprintf(&b, "subcategory: %s\n", res.Subcategory)
	}
	if res.AgentType != "" {
		fmt.Fprintf(&b, "agent: %s\n", res.AgentType)
	}
	fmt.Fprintf(&b, "task: %s\n", textutil.Truncate(textutil.FirstLine(res.TaskDescription), taskHeaderLimit))
	if len(res.ToolsUsed) > 0 {
		fmt.Fprintf(&b, "tools: %s\n", strings.Join(res.ToolsUsed, ", "))
	}
	b.WriteString(headerDelimiter + "\n\n")
	if res.IsLearningEvent {
		b.WriteString(learningBanner + "\n\n")
	}
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// Header is the parsed header block of a rendered document.
type Header struct {
	Timestamp   time.Time
	Category    string
	Subcategory string
	AgentType   string
	Task        string
	Tools       []string
	IsLearning  bool
}

// ParseHeader reparses a rendered document's header block. Rendering a
// result and parsing it back reproduces category, subcategory and task.
func ParseHeader(data []byte) (*Header, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != headerDelimiter {
		return nil, fmt.Errorf("document does not start with a header block")
	}

	h := &Header{}
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == headerDelimiter {
			closed = true
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "timestamp":
			if ts, err := time.Parse(time.RFC3339, value); err == nil {
				h.Timestamp = ts
			}
		case "category":
			h.Category = value
		case "subcategory":
			h.Subcategory = value
		case "agent":
			h.AgentType = value
		case "task":
			h.Task = value
		case "tools":
			for _, tool := range strings.Split(value, ",") {
				if t := strings.TrimSpace(tool); t != "" {
					h.Tools = append(h.Tools, t)
				}
			}
		}
	}
	if !closed {
		return nil, fmt.Errorf("header block is not terminated")
	}
	// The banner, when present, is the first non-empty line after the header.
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		h.IsLearning = line == learningBanner
		break
	}
	return h, nil
}
