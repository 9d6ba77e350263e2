package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// Sender addresses must never become label values; these helpers reduce
// them to something bounded.

// ExtractUserDomain extracts the domain part from an email address or a
// From header ("Name <user@example.com>").
//
// Example:
//
//	ExtractUserDomain("jane@example.com")           // "example.com"
//	ExtractUserDomain("Jobs <jobs@linkedin.com>")   // "linkedin.com"
//	ExtractUserDomain("invalid")                    // "unknown"
//	ExtractUserDomain("")                           // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		domain := strings.TrimSpace(strings.TrimSuffix(parts[1], ">"))
		if domain != "" {
			return strings.ToLower(domain)
		}
	}

	return "unknown"
}

// Operation types for Google API and Ollama metrics.
const (
	OperationSearch   = "search"
	OperationSend     = "send"
	OperationGenerate = "generate"
)
