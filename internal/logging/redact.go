package logging

import "strings"

// Redacted replaces the value of any sensitive key.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"pin":        {},
	"secret":     {},
	"key":        {},
	"password":   {},
	"passphrase": {},
}

// redact returns args with the values of sensitive keys masked. args is
// left untouched; a copy is made only when something is masked.
func redact(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			continue
		}
		if _, hit := sensitiveKeys[strings.ToLower(k)]; !hit {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i+1] = Redacted
	}
	if out == nil {
		return args
	}
	return out
}
