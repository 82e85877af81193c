package models

import "time"

// Relationship statuses
const (
	RelationshipActive  = "active"
	RelationshipRemoved = "removed"
)

// Relationship records how two members of a family relate to each other.
// The reciprocal type is derived, never supplied by callers.
type Relationship struct {
	ID        int64
	FamilyID  int64
	UserAID   int64
	UserBID   int64
	TypeAToB  string
	TypeBToA  string
	Status    string
	CreatedAt time.Time
}

// reciprocalTypes maps a relationship type to its inverse.
var reciprocalTypes = map[string]string{
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

// ReciprocalRelationship returns the inverse of a relationship type and
// whether the type is recognized.
func ReciprocalRelationship(relType string) (string, bool) {
	r, ok := reciprocalTypes[relType]
	return r, ok
}

// ValidRelationshipType reports whether relType is a recognized type
func ValidRelationshipType(relType string) bool {
	_, ok := reciprocalTypes[relType]
	return ok
}
