package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeAccountName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "The Smiths", "the_smiths"},
		{"punctuation", "O'Brien & Co.", "o_brien_co"},
		{"uppercase", "LOUD HOUSE", "loud_house"},
		{"collapses underscores", "a___b  c", "a_b_c"},
		{"trims underscores", "__edges__", "edges"},
		{"empty", "", "default"},
		{"symbols only", "!!!", "default"},
		{"short gets prefixed", "ab", "family_ab"},
		{"unicode stripped", "café ñandú", "caf_and"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeAccountName(tt.in); got != tt.want {
				t.Errorf("sanitizeAccountName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	// Long names leave room for the account prefix within the username cap.
	long := sanitizeAccountName(strings.Repeat("abc ", 30))
	if len(accountPrefix)+len(long) > maxUsernameLen {
		t.Errorf("sanitized long name overflows the cap: %q", long)
	}
	if strings.HasSuffix(long, "_") {
		t.Errorf("truncation left a trailing underscore: %q", long)
	}
}

func TestValidateFamilyName(t *testing.T) {
	valid := []string{"The Smiths", "abc", strings.Repeat("x", 50), "  padded name  "}
	for _, name := range valid {
		if err := ValidateFamilyName(name); err != nil {
			t.Errorf("ValidateFamilyName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"ab", "", strings.Repeat("x", 51), "Admin Family", "SYSTEM ONE", "sbd-house", "  a  "}
	for _, name := range invalid {
		var vErr *ValidationError
		if err := ValidateFamilyName(name); !errors.As(err, &vErr) {
			t.Errorf("ValidateFamilyName(%q) = %v, want ValidationError", name, err)
		}
	}
}

func TestGenerateAccountUsername(t *testing.T) {
	never := func(string) (bool, error) { return false, nil }
	clock := int64(1748779200)
	now := func() int64 { return clock }

	got, err := generateAccountUsername("The Smiths", never, now)
	if err != nil {
		t.Fatalf("generateAccountUsername failed: %v", err)
	}
	if got != "family_the_smiths" {
		t.Errorf("username = %q, want family_the_smiths", got)
	}

	// On collision the time-derived suffix is appended.
	taken := map[string]bool{"family_the_smiths": true}
	inUse := func(name string) (bool, error) { return taken[name], nil }
	got, err = generateAccountUsername("The Smiths", inUse, now)
	if err != nil {
		t.Fatalf("generateAccountUsername failed: %v", err)
	}
	if want := "family_the_smiths_779200"; got != want {
		t.Errorf("username = %q, want %q", got, want)
	}

	// Retries only help when the clock moves between attempts.
	taken[got] = true
	attempts := 0
	ticking := func() int64 {
		attempts++
		return clock + int64(attempts)
	}
	got, err = generateAccountUsername("The Smiths", inUse, ticking)
	if err != nil {
		t.Fatalf("generateAccountUsername failed: %v", err)
	}
	if taken[got] {
		t.Errorf("allocated a taken username %q", got)
	}

	// Exhausting the attempts is a uniqueness failure.
	always := func(string) (bool, error) { return true, nil }
	_, err = generateAccountUsername("The Smiths", always, now)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Constraint != "uniqueness" {
		t.Errorf("exhaustion error = %v, want uniqueness ValidationError", err)
	}
}
