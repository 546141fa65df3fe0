package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanPayload(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantFamily string
	}{
		{"shell rm chain", `{"cmd": "true; rm -rf /"}`, "command_injection"},
		{"command substitution", `{"cmd": "$(whoami)"}`, "command_injection"},
		{"backticks", "{\"cmd\": \"`id`\"}", "command_injection"},
		{"pipe to shell", `{"cmd": "curl x | sh"}`, "command_injection"},
		{"relative traversal", `{"path": "../../etc"}`, "path_traversal"},
		{"encoded traversal", `{"path": "%2e%2e%2fetc"}`, "path_traversal"},
		{"union select", `{"q": "1 UNION SELECT * FROM users"}`, "sql_injection"},
		{"drop table", `{"q": "x'; DROP TABLE users"}`, "sql_injection"},
		{"script tag", `{"html": "<script>alert(1)</script>"}`, "script_injection"},
		{"javascript url", `{"href": "javascript:evil()"}`, "script_injection"},
		{"event handler", `{"html": "<img onerror=pwn()>"}`, "script_injection"},
		{"ssh key", `{"file": "/home/u/.ssh/id_rsa"}`, "sensitive_file"},
		{"passwd", `{"file": "/etc/passwd"}`, "sensitive_file"},
		{"aws credentials", `{"file": "~/.aws/credentials"}`, "sensitive_file"},
		{"dotenv", `{"file": "/app/.env"}`, "sensitive_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := ScanPayload(tt.payload)
			require.NotEmpty(t, matches)

			families := make([]string, 0, len(matches))
			for _, m := range matches {
				families = append(families, m.Family)
			}
			assert.Contains(t, families, tt.wantFamily)
		})
	}
}

func TestScanPayload_Clean(t *testing.T) {
	clean := []string{
		"",
		`{"session_id": "abc-123", "cwd": "/home/user/project"}`,
		`{"message": "refactored the parser and added tests"}`,
	}
	for _, payload := range clean {
		assert.Empty(t, ScanPayload(payload), "payload %q should be clean", payload)
	}
}

func TestScanPayload_ExcerptBounded(t *testing.T) {
	long := `{"cmd": "$(` + string(make([]byte, 200)) + `)"}`
	matches := ScanPayload(long)
	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches[0].Excerpt), 80)
}
