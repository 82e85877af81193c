package ledger

import (
	"fmt"
	"regexp"
	"strings"
)

// accountPrefix marks virtual-account usernames. It is not itself a reserved
// prefix: generated account names legitimately start with it.
const accountPrefix = "family_"

const (
	minFamilyNameLen   = 3
	maxFamilyNameLen   = 50
	maxUsernameLen     = 50
	usernameAttempts   = 10
	defaultAccountName = "default"
)

// reservedPrefixes are rejected at the start of family names and usernames.
var reservedPrefixes = []string{"admin", "system", "support", "root", "moderator", "sbd"}

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9_]+`)
var repeatedUnderscore = regexp.MustCompile(`_+`)

// hasReservedPrefix reports whether name starts with a reserved prefix
func hasReservedPrefix(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateFamilyName checks length and reserved-prefix constraints
func ValidateFamilyName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < minFamilyNameLen || len(name) > maxFamilyNameLen {
		return &ValidationError{
			Field:   "family_name",
			Message: fmt.Sprintf("name must be between %d and %d characters", minFamilyNameLen, maxFamilyNameLen),
		}
	}
	if hasReservedPrefix(name) {
		return &ValidationError{
			Field:      "family_name",
			Message:    "name starts with a reserved prefix",
			Constraint: "reserved_prefix",
		}
	}
	return nil
}

// sanitizeAccountName normalizes a family name into the account-username
// charset: lowercase, runs of other characters become single underscores,
// leading/trailing underscores stripped. Empty input becomes "default"; a
// result shorter than three characters is padded with the account prefix; a
// result that would push the full username past the length cap is truncated.
func sanitizeAccountName(name string) string {
	s := strings.ToLower(name)
	s = nonUsernameChars.ReplaceAllString(s, "_")
	s = repeatedUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if s == "" {
		s = defaultAccountName
	}
	if len(s) < minFamilyNameLen {
		s = accountPrefix + s
	}
	if max := maxUsernameLen - len(accountPrefix); len(s) > max {
		s = s[:max]
		s = strings.TrimRight(s, "_")
	}
	return s
}

// generateAccountUsername allocates a collision-resistant virtual-account
// username. The bare sanitized candidate is tried first; on collision, up to
// usernameAttempts retries append the last six digits of the current unix
// time. Exhausting the attempts is a uniqueness validation failure.
func generateAccountUsername(name string, taken func(string) (bool, error), unixNow func() int64) (string, error) {
	base := sanitizeAccountName(name)
	candidate := accountPrefix + base

	if !hasReservedPrefix(candidate) {
		inUse, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}

	// Leave room for the "_NNNNNN" suffix within the length cap.
	if max := maxUsernameLen - len(accountPrefix) - 7; len(base) > max {
		base = strings.TrimRight(base[:max], "_")
	}

	for attempt := 0; attempt < usernameAttempts; attempt++ {
		suffix := fmt.Sprintf("%06d", unixNow()%1000000)
		candidate := accountPrefix + base + "_" + suffix
		if hasReservedPrefix(candidate) {
			continue
		}
		inUse, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}

	return "", &ValidationError{
		Field:      "family_name",
		Message:    "could not allocate a unique account username",
		Constraint: "uniqueness",
	}
}
