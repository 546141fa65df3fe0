package security

import "regexp"

// PatternMatch is one hit from the malicious-pattern scan.
type PatternMatch struct {
	Family  string
	Excerpt string
}

// patternFamilies are the threat signatures run against every serialized
// payload. A hit in any family rejects the event outright.
var patternFamilies = []struct {
	family   string
	patterns []*regexp.Regexp
}{
	{
		family: "command_injection",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`;\s*rm\s+-rf`),
			regexp.MustCompile(`\$\([^)]*\)`),
			regexp.MustCompile("`[^`]+`"),
			regexp.MustCompile(`&&\s*(rm|curl|wget|nc)\s`),
			regexp.MustCompile(`\|\s*(sh|bash|zsh)\b`),
		},
	},
	{
		family: "path_traversal",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\./\.\./`),
			regexp.MustCompile(`\.\.\\\.\.\\`),
			regexp.MustCompile(`(?i)%2e%2e%2f`),
		},
	},
	{
		family: "sql_injection",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)union\s+select`),
			regexp.MustCompile(`(?i);\s*drop\s+table`),
			regexp.MustCompile(`(?i)('|%27)\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+`),
		},
	},
	{
		family: "script_injection",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script\b`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)\bon(error|load|click|mouseover)\s*=`),
		},
	},
	{
		family: "sensitive_file",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\.ssh/id_(rsa|ed25519|ecdsa)`),
			regexp.MustCompile(`/etc/(passwd|shadow|sudoers)`),
			regexp.MustCompile(`\.aws/credentials`),
			regexp.MustCompile(`(?i)(^|[\\/"\s])\.env\b`),
			regexp.MustCompile(`\.npmrc`),
		},
	},
}

// sensitivePathMarkers reject a transcript path on substring match alone,
// before base-directory confinement is even considered.
var sensitivePathMarkers = []string{
	".ssh/id_rsa",
	".ssh/id_ed25519",
	".env",
	"/etc/passwd",
	"/etc/shadow",
	".aws/credentials",
}

// ScanPayload runs every pattern family over the serialized payload and
// returns all hits, at most one per (family, pattern) pair. An empty result
// means the payload is clean.
func ScanPayload(payload string) []PatternMatch {
	if payload == "" {
		return nil
	}
	var matches []PatternMatch
	for _, fam := range patternFamilies {
		for _, re := range fam.patterns {
			if loc := re.FindStringIndex(payload); loc != nil {
				excerpt := payload[loc[0]:loc[1]]
				if len(excerpt) > 80 {
					excerpt = excerpt[:80]
				}
				matches = append(matches, PatternMatch{Family: fam.family, Excerpt: excerpt})
			}
		}
	}
	return matches
}
