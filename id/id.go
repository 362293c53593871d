// Package id defines TypeID-based identity types for all Bastion entities.
//
// Every entity in Bastion uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Bastion entity types.
const (
	PrefixScope      Prefix = "scope"
	PrefixScopeRule  Prefix = "srule"
	PrefixAccessRule Prefix = "arule"
	PrefixAssignment Prefix = "asgn"
	PrefixRole       Prefix = "role"
	PrefixConflict   Prefix = "cflt"
	PrefixModule     Prefix = "modl"
	PrefixCondition  Prefix = "cond"
	PrefixScenario   Prefix = "scen"
	PrefixDecision   Prefix = "decn"
)

// ID is the primary identifier type for all Bastion entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "scope_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases per entity
// ──────────────────────────────────────────────────

// ScopeID is a type-safe identifier for scopes (prefix: "scope").
type ScopeID = ID

// ScopeRuleID is a type-safe identifier for scope rules (prefix: "srule").
type ScopeRuleID = ID

// AccessRuleID is a type-safe identifier for access rules (prefix: "arule").
type AccessRuleID = ID

// AssignmentID is a type-safe identifier for assignments (prefix: "asgn").
type AssignmentID = ID

// RoleID is a type-safe identifier for role definitions (prefix: "role").
type RoleID = ID

// ConflictID is a type-safe identifier for detected conflicts (prefix: "cflt").
type ConflictID = ID

// ModuleID is a type-safe identifier for module catalog entries (prefix: "modl").
type ModuleID = ID

// ConditionID is a type-safe identifier for rule conditions (prefix: "cond").
type ConditionID = ID

// ScenarioID is a type-safe identifier for simulation scenarios (prefix: "scen").
type ScenarioID = ID

// DecisionID is a type-safe identifier for decision log entries (prefix: "decn").
type DecisionID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewScopeID generates a new unique scope ID.
func NewScopeID() ID { return New(PrefixScope) }

// NewScopeRuleID generates a new unique scope rule ID.
func NewScopeRuleID() ID { return New(PrefixScopeRule) }

// NewAccessRuleID generates a new unique access rule ID.
func NewAccessRuleID() ID { return New(PrefixAccessRule) }

// NewAssignmentID generates a new unique assignment ID.
func NewAssignmentID() ID { return New(PrefixAssignment) }

// NewRoleID generates a new unique role ID.
func NewRoleID() ID { return New(PrefixRole) }

// NewConflictID generates a new unique conflict ID.
func NewConflictID() ID { return New(PrefixConflict) }

// NewModuleID generates a new unique module catalog ID.
func NewModuleID() ID { return New(PrefixModule) }

// NewConditionID generates a new unique condition ID.
func NewConditionID() ID { return New(PrefixCondition) }

// NewScenarioID generates a new unique scenario ID.
func NewScenarioID() ID { return New(PrefixScenario) }

// NewDecisionID generates a new unique decision log ID.
func NewDecisionID() ID { return New(PrefixDecision) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseScopeID parses a string and validates the "scope" prefix.
func ParseScopeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixScope) }

// ParseScopeRuleID parses a string and validates the "srule" prefix.
func ParseScopeRuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixScopeRule) }

// ParseAccessRuleID parses a string and validates the "arule" prefix.
func ParseAccessRuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccessRule) }

// ParseAssignmentID parses a string and validates the "asgn" prefix.
func ParseAssignmentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAssignment) }

// ParseRoleID parses a string and validates the "role" prefix.
func ParseRoleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRole) }

// ParseConflictID parses a string and validates the "cflt" prefix.
func ParseConflictID(s string) (ID, error) { return ParseWithPrefix(s, PrefixConflict) }

// ParseModuleID parses a string and validates the "modl" prefix.
func ParseModuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixModule) }

// ParseConditionID parses a string and validates the "cond" prefix.
func ParseConditionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixCondition) }

// ParseScenarioID parses a string and validates the "scen" prefix.
func ParseScenarioID(s string) (ID, error) { return ParseWithPrefix(s, PrefixScenario) }

// ParseDecisionID parses a string and validates the "decn" prefix.
func ParseDecisionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDecision) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
