package secredit

import "strings"

// NoSecretsProfile is the reserved profile name meaning "use no key". It always
// exists and is never persisted.
const NoSecretsProfile = "no secrets"

// Normalizer transforms a profile name into the form entries are keyed by.
//
// IMPORTANT: Use the SAME normalizer on save and lookup.
// Mixing normalizers breaks lookups.
type Normalizer func(string) string

// NormalizeProfileName lowercases a name and collapses runs of whitespace into
// one space, trimming both ends.
//
// Example: "  My   Work " -> "my work"
var NormalizeProfileName Normalizer = func(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// IsNoSecrets reports whether name refers to the reserved profile.
func IsNoSecrets(name string) bool {
	return NormalizeProfileName(name) == NoSecretsProfile
}
