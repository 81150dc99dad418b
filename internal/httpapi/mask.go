package httpapi

import "strings"

var secretKeyHints = []string{"secret", "token", "password", "passphrase", "key", "credential"}

// sanitizeConfig masks config values whose key suggests a secret. Config is
// not the credential store, but operators paste tokens into it anyway.
func sanitizeConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if s, ok := v.(string); ok && looksSecret(k) {
			out[k] = MaskSecret(s)
			continue
		}
		out[k] = v
	}
	return out
}

func looksSecret(key string) bool {
	k := strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(k, hint) {
			return true
		}
	}
	return false
}

// MaskSecret obscures a secret for display, keeping a short recognizable
// tail and any provider prefix (for example "ghp_").
func MaskSecret(secret string) string {
	s := strings.TrimSpace(secret)
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	tail := s[len(s)-4:]
	prefix := ""
	if idx := strings.Index(s, "_"); idx > 0 && idx <= 6 {
		prefix = s[:idx+1]
	}
	return prefix + "****" + tail
}
