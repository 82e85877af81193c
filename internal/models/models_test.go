package models

import (
	"testing"
	"time"
)

func TestSpendingPermissionAllows(t *testing.T) {
	tests := []struct {
		name   string
		perm   SpendingPermission
		amount int64
		want   bool
	}{
		{"cannot spend", SpendingPermission{CanSpend: false, SpendingLimit: 1000}, 10, false},
		{"unlimited", SpendingPermission{CanSpend: true, SpendingLimit: UnlimitedSpending}, 1 << 40, true},
		{"under limit", SpendingPermission{CanSpend: true, SpendingLimit: 100}, 99, true},
		{"at limit", SpendingPermission{CanSpend: true, SpendingLimit: 100}, 100, true},
		{"over limit", SpendingPermission{CanSpend: true, SpendingLimit: 100}, 101, false},
		{"zero limit", SpendingPermission{CanSpend: true, SpendingLimit: 0}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.perm.Allows(tt.amount); got != tt.want {
				t.Errorf("Allows(%d) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestReciprocalRelationship(t *testing.T) {
	pairs := map[string]string{
		"parent":      "child",
		"child":       "parent",
		"guardian":    "ward",
		"ward":        "guardian",
		"sibling":     "sibling",
		"spouse":      "spouse",
		"grandparent": "grandchild",
		"grandchild":  "grandparent",
		"other":       "other",
	}
	for relType, want := range pairs {
		got, ok := ReciprocalRelationship(relType)
		if !ok || got != want {
			t.Errorf("ReciprocalRelationship(%q) = %q, %v, want %q, true", relType, got, ok, want)
		}
		if !ValidRelationshipType(relType) {
			t.Errorf("ValidRelationshipType(%q) = false", relType)
		}
	}
	if _, ok := ReciprocalRelationship("acquaintance"); ok {
		t.Error("unknown type reported as recognized")
	}
	if ValidRelationshipType("") {
		t.Error("empty type reported as valid")
	}
}

func TestEventSeverity(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{"account_frozen", SeverityHigh},
		{"frozen_account_attempt", SeverityHigh},
		{"account_recovery", SeverityHigh},
		{"spending_denied", SeverityMedium},
		{"nonzero_balance_discarded", SeverityMedium},
		{"admin_promoted", SeverityMedium},
		{"spending_approved", SeverityLow},
		{"token_request_auto_approve", SeverityLow},
		{"something_unclassified", SeverityLow},
	}
	for _, tt := range tests {
		if got := EventSeverity(tt.eventType); got != tt.want {
			t.Errorf("EventSeverity(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestInvitationValidity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inv := Invitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}

	if !inv.IsValid(now) {
		t.Error("pending unexpired invitation reported invalid")
	}
	if inv.IsExpired(now) {
		t.Error("unexpired invitation reported expired")
	}
	if inv.IsValid(now.Add(2 * time.Hour)) {
		t.Error("expired invitation reported valid")
	}

	inv.Status = InvitationDeclined
	if inv.IsValid(now) {
		t.Error("declined invitation reported valid")
	}
}

func TestTokenRequestState(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := TokenRequest{Status: RequestPending, ExpiresAt: now.Add(time.Hour)}

	if !req.IsPending() {
		t.Error("pending request reported not pending")
	}
	if req.IsExpired(now) {
		t.Error("request inside its window reported expired")
	}
	if !req.IsExpired(now.Add(2 * time.Hour)) {
		t.Error("request past its window reported live")
	}

	req.Status = RequestApproved
	if req.IsPending() {
		t.Error("approved request reported pending")
	}
}
