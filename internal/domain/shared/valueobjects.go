// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// UserID represents a unique user identifier (UUID format).
type UserID string

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", WrapError("shared", "NewUserID", ErrInvalidID, "user ID must be a UUID", nil)
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Points represents a signed point amount. Ledger entries carry signed
// amounts; balances and lifetime points are always non-negative.
type Points int

// IsZero reports whether the amount is zero.
func (p Points) IsZero() bool {
	return p == 0
}

// IsPositive reports whether the amount is positive.
func (p Points) IsPositive() bool {
	return p > 0
}

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// String returns a signed string representation (e.g. "+25", "-10").
func (p Points) String() string {
	if p > 0 {
		return fmt.Sprintf("+%d", int(p))
	}
	return fmt.Sprintf("%d", int(p))
}

// ═══════════════════════════════════════════════════════════════════════════
// Reference Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Reference identifies the domain event that triggered a transaction,
// e.g. ("event_participation", "<participation uuid>"). It exists purely
// for traceability; the ledger never dereferences it.
type Reference struct {
	Type string
	ID   string
}

// IsZero reports whether the reference is empty.
func (r Reference) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// String returns "type:id" for logging.
func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Type + ":" + r.ID
}

// NewReference creates a reference after trimming whitespace.
func NewReference(refType, refID string) Reference {
	return Reference{
		Type: strings.TrimSpace(refType),
		ID:   strings.TrimSpace(refID),
	}
}
