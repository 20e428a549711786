package registryapi

import "regexp"

// identifierPattern matches the owner/repo/short-name grammar: lowercase
// letters, digits, hyphens and underscores, no leading/trailing
// separator, 1-64 characters.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}[a-z0-9]$|^[a-z0-9]$`)

func validIdentifier(s string) bool {
	return len(s) <= 64 && identifierPattern.MatchString(s)
}
