package sandbox

import "strings"

// blockedSubstrings flags any environment variable name containing one of
// these fragments, case-insensitively.
var blockedSubstrings = []string{
	"SECRET",
	"PASSWORD",
	"PRIVATE_KEY",
}

// blockedExact names specific, known credential variables that don't carry
// one of the blocked substrings.
var blockedExact = map[string]bool{
	"API_KEY":               true,
	"AWS_ACCESS_KEY_ID":     true,
	"AWS_SESSION_TOKEN":     true,
	"AZURE_CLIENT_SECRET":   true,
	"GCP_SERVICE_ACCOUNT":   true,
	"OAUTH_CLIENT_SECRET":   true,
	"OAUTH_REFRESH_TOKEN":   true,
	"STRIPE_API_KEY":        true,
	"SLACK_BOT_TOKEN":       true,
	"SLACK_WEBHOOK_URL":     true,
	"GITHUB_TOKEN":          true,
	"NPM_TOKEN":             true,
}

// IsBlockedEnvVar reports whether name must never be passed into a sandboxed
// handler's environment.
func IsBlockedEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	if blockedExact[upper] {
		return true
	}
	for _, frag := range blockedSubstrings {
		if strings.Contains(upper, frag) {
			return true
		}
	}
	return false
}

// ValidateEnv returns the first blocked variable name found in env, or ""
// if none. Callers turn a blocked name into a BLOCKED_ENV_VAR_REQUESTED
// denial: NewIsolation for the factory's default env, and the isolation
// strategies for each call's Limits.Env.
func ValidateEnv(env map[string]string) string {
	for name := range env {
		if IsBlockedEnvVar(name) {
			return name
		}
	}
	return ""
}
