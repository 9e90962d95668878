package guard

// Sensitivity classifies a log or error attribute. Classification is
// declarative and lives here, not scattered across call sites matching on
// field names.
type Sensitivity int

const (
	// Public attributes pass through untouched.
	Public Sensitivity = iota
	// Opaque attributes are internal identifiers: safe to log, never
	// returned to clients.
	Opaque
	// Secret attributes are redacted everywhere.
	Secret
)

const redactedPlaceholder = "[REDACTED]"

// classification maps attribute names to their sensitivity class. Unlisted
// attributes default to Public; anything secret must be listed here.
var classification = map[string]Sensitivity{
	"password":      Secret,
	"password_hash": Secret,
	"access_token":  Secret,
	"refresh_token": Secret,
	"bearer_token":  Secret,
	"signing_key":   Secret,
	"authorization": Secret,

	"session_id":   Opaque,
	"principal_id": Opaque,
	"account_id":   Opaque,
	"jti":          Opaque,
}

// Classify reports an attribute's sensitivity.
func Classify(name string) Sensitivity {
	return classification[name]
}

// RedactAttrs returns a copy of slog-style key/value pairs with secret
// values replaced. Used by the guard's error formatter before emitting
// rejection logs built from request data.
func RedactAttrs(attrs []any) []any {
	out := make([]any, len(attrs))
	copy(out, attrs)
	for i := 0; i+1 < len(out); i += 2 {
		name, ok := out[i].(string)
		if !ok {
			continue
		}
		if Classify(name) == Secret {
			out[i+1] = redactedPlaceholder
		}
	}
	return out
}
