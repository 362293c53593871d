package api

import (
	"github.com/xraph/bastion"
	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/predicate"
)

// BatchEvaluateResponse contains decisions for a batch evaluation, in
// request order.
type BatchEvaluateResponse struct {
	Results []*bastion.Decision `json:"results" description:"Decisions in request order"`
}

// FilterPredicateResponse carries the composed row filter for a user.
// A null predicate means unrestricted access.
type FilterPredicateResponse struct {
	Predicate *predicate.Node `json:"predicate" description:"Composed filter predicate; null means unrestricted"`
}

// ConflictListResponse lists detected assignment conflicts.
type ConflictListResponse struct {
	Conflicts []*conflict.Conflict `json:"conflicts" description:"Detected conflicts"`
}

// BulkConflictResponse is returned when a bulk assignment is rejected
// because of critical conflicts under manual resolution.
type BulkConflictResponse struct {
	Error     string               `json:"error" description:"Rejection reason"`
	Conflicts []*conflict.Conflict `json:"conflicts" description:"Conflicts that blocked the batch"`
}
