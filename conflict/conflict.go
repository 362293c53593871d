// Package conflict defines detected assignment conflicts. Conflicts are
// derived on demand from the current assignment and rule sets — they are
// never persisted as a source of truth.
package conflict

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Kind classifies a detected conflict.
type Kind string

const (
	// DuplicateGrant is an exact role already actively held.
	DuplicateGrant Kind = "duplicate_grant"

	// PermissionOverlap is a lower-privilege role held in the same module
	// family as a higher one.
	PermissionOverlap Kind = "permission_overlap"

	// HierarchicalAmbiguity is a pair of co-held scopes where one nests
	// under — or is ordered strictly broader than — the other.
	HierarchicalAmbiguity Kind = "hierarchical_ambiguity"

	// TimeConflict is a pair of grants of the same role whose effective
	// windows overlap.
	TimeConflict Kind = "time_conflict"

	// LocationConflict is a pair of same-family roles bound to different
	// locations.
	LocationConflict Kind = "location_conflict"
)

// Severity ranks how urgently a conflict needs resolution.
type Severity string

const (
	// SeverityLow conflicts are cosmetic and safely auto-resolvable.
	SeverityLow Severity = "low"

	// SeverityMedium conflicts should be resolved but do not block.
	SeverityMedium Severity = "medium"

	// SeverityHigh conflicts indicate a likely-wrong grant.
	SeverityHigh Severity = "high"

	// SeverityCritical conflicts block bulk operations under manual
	// resolution.
	SeverityCritical Severity = "critical"
)

// Rank returns a comparable order for severities (higher = worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Conflict is one detected problem over a user's assignments or the rules
// they reach.
type Conflict struct {
	ID          id.ConflictID `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Kind        Kind          `json:"kind"`
	Severity    Severity      `json:"severity"`
	UserID      string        `json:"user_id"`
	InvolvedIDs []id.ID       `json:"involved_ids"`
	Description string        `json:"description"`

	// AutoResolvable marks conflicts the assignment registry may resolve
	// itself when the caller opts in to automatic resolution.
	AutoResolvable    bool     `json:"auto_resolvable"`
	ResolutionOptions []string `json:"resolution_options,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// HasCritical reports whether any conflict in the list is critical.
func HasCritical(conflicts []*Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
