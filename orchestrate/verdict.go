package orchestrate

import (
	"regexp"
	"strings"

	"github.com/kauf3r/agent-trust-layer/schema"
)

var verdictPattern = regexp.MustCompile(`(?i)VERDICT:\s*\**\s*(PASS|FAIL)\s*\**`)

// allowlistPhrases maps additional reviewer phrasing to an explicit verdict,
// for reviewers that don't emit the canonical "VERDICT: PASS/FAIL" form.
// Order matters: negative phrases are checked first since some contain a
// positive phrase as a substring ("not approved for distribution" contains
// "approved for distribution").
var allowlistPhrases = []struct {
	phrase  string
	verdict schema.Verdict
}{
	{"not approved for distribution", schema.VerdictFail},
	{"rejected for distribution", schema.VerdictFail},
	{"approved for distribution", schema.VerdictPass},
}

// ParseVerdict extracts an explicit PASS/FAIL verdict from reviewer text, per
// spec.md §4.I step (d): the canonical "VERDICT: PASS"/"VERDICT: FAIL" form
// (case-insensitive, optional markdown bold), plus a small allowlist of
// equivalent phrases. Returns nil if no explicit verdict is found — the
// orchestrator must not guess.
func ParseVerdict(text string) *schema.Verdict {
	if m := verdictPattern.FindStringSubmatch(text); m != nil {
		v := schema.Verdict(strings.ToUpper(m[1]))
		return &v
	}

	lower := strings.ToLower(text)
	for _, entry := range allowlistPhrases {
		if strings.Contains(lower, entry.phrase) {
			v := entry.verdict
			return &v
		}
	}
	return nil
}
