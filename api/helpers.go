package api

import (
	"context"
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, bastion.ErrValidation) ||
		errors.Is(err, bastion.ErrInvalidHierarchy) ||
		errors.Is(err, bastion.ErrInvalidPredicate) ||
		errors.Is(err, bastion.ErrHasChildren) ||
		errors.Is(err, bastion.ErrHasAssignments) ||
		errors.Is(err, bastion.ErrSystemRoleImmutable) {
		return forge.BadRequest(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, bastion.ErrScopeNotFound) ||
		errors.Is(err, bastion.ErrScopeRuleNotFound) ||
		errors.Is(err, bastion.ErrRuleNotFound) ||
		errors.Is(err, bastion.ErrAssignmentNotFound) ||
		errors.Is(err, bastion.ErrRoleNotFound) ||
		errors.Is(err, bastion.ErrModuleNotFound)
}

// tenantOwned reports whether a fetched record belongs to the request
// tenant. Fetch-by-ID handlers treat another tenant's record as not found.
func tenantOwned(ctx context.Context, recordTenant string) bool {
	return recordTenant == bastion.TenantID(ctx)
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
