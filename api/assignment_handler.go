package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
)

func (a *API) registerAssignmentRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("assignments"))

	if err := g.POST("/assignments", a.assign,
		forge.WithSummary("Assign user"),
		forge.WithDescription("Assigns a user to a scope or role, optionally within a time window."),
		forge.WithOperationID("assign"),
		forge.WithRequestSchema(AssignRequest{}),
		forge.WithCreatedResponse(&assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/assignments/bulk", a.bulkAssign,
		forge.WithSummary("Bulk assign"),
		forge.WithDescription("Assigns every user to every target with conflict screening."),
		forge.WithOperationID("bulkAssign"),
		forge.WithRequestSchema(BulkAssignApiRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Bulk assignment result", &bastion.BulkResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/assignments", a.listAssignments,
		forge.WithSummary("List assignments"),
		forge.WithDescription("Lists assignments with optional filters."),
		forge.WithOperationID("listAssignments"),
		forge.WithRequestSchema(ListAssignmentsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Assignment list", []*assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/assignments/:assignmentId", a.unassign,
		forge.WithSummary("Unassign"),
		forge.WithDescription("Deactivates an assignment. The record is kept for audit."),
		forge.WithOperationID("unassign"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/assignments/active", a.listActiveAssignments,
		forge.WithSummary("List active assignments"),
		forge.WithDescription("Returns the user's assignments currently in effect."),
		forge.WithOperationID("listActiveAssignments"),
		forge.WithResponseSchema(http.StatusOK, "Active assignments", []*assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/users/:userId/assignments", a.listUserAssignments,
		forge.WithSummary("List assignment history"),
		forge.WithDescription("Returns the user's full assignment history, including deactivated records."),
		forge.WithOperationID("listUserAssignments"),
		forge.WithResponseSchema(http.StatusOK, "Assignment history", []*assignment.Assignment{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) assign(ctx forge.Context, req *AssignRequest) (*assignment.Assignment, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}

	targetID, err := id.ParseAny(req.TargetID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid target_id: %v", err))
	}

	in := &bastion.AssignInput{
		UserID:     req.UserID,
		TargetID:   targetID,
		AssignedBy: req.AssignedBy,
		Reason:     req.Reason,
	}
	if in.EffectiveAt, err = parseTimePtr(req.EffectiveAt); err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid effective_at: %v", err))
	}
	if in.ExpiresAt, err = parseTimePtr(req.ExpiresAt); err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid expires_at: %v", err))
	}

	as, err := a.eng.Assign(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	return as, ctx.JSON(http.StatusCreated, as)
}

func (a *API) bulkAssign(ctx forge.Context, req *BulkAssignApiRequest) (*bastion.BulkResult, error) {
	in := &bastion.BulkAssignRequest{
		UserIDs:    req.UserIDs,
		Resolution: bastion.ConflictResolution(req.Resolution),
		AssignedBy: req.AssignedBy,
		Reason:     req.Reason,
	}

	for _, raw := range req.TargetIDs {
		targetID, err := id.ParseAny(raw)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid target_id %q: %v", raw, err))
		}
		in.TargetIDs = append(in.TargetIDs, targetID)
	}

	var err error
	if in.EffectiveAt, err = parseTimePtr(req.EffectiveAt); err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid effective_at: %v", err))
	}
	if in.ExpiresAt, err = parseTimePtr(req.ExpiresAt); err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid expires_at: %v", err))
	}

	result, err := a.eng.BulkAssign(ctx.Context(), in)
	if err != nil {
		var blocked *bastion.ConflictBlockedError
		if errors.As(err, &blocked) {
			resp := &BulkConflictResponse{
				Error:     "bulk assignment blocked by critical conflicts",
				Conflicts: blocked.Conflicts,
			}
			return nil, ctx.JSON(http.StatusConflict, resp)
		}
		return nil, mapError(err)
	}

	return result, ctx.JSON(http.StatusOK, result)
}

func (a *API) unassign(ctx forge.Context, _ *GetAssignmentRequest) (*struct{}, error) {
	assID, err := id.ParseAssignmentID(ctx.Param("assignmentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid assignment ID: %v", err))
	}

	if err := a.eng.Unassign(ctx.Context(), assID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listAssignments(ctx forge.Context, req *ListAssignmentsRequest) ([]*assignment.Assignment, error) {
	filter := &assignment.ListFilter{
		TenantID: bastion.TenantID(ctx.Context()),
		UserID:   req.UserID,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	}

	if req.ScopeID != "" {
		scopeID, err := id.ParseScopeID(req.ScopeID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid scope_id: %v", err))
		}
		filter.ScopeID = &scopeID
	}
	if req.RoleID != "" {
		roleID, err := id.ParseRoleID(req.RoleID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid role_id: %v", err))
		}
		filter.RoleID = &roleID
	}
	if req.Active != "" {
		active, err := strconv.ParseBool(req.Active)
		if err != nil {
			return nil, forge.BadRequest("active must be true or false")
		}
		filter.Active = &active
	}

	assignments, err := a.eng.Store().ListAssignments(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return assignments, ctx.JSON(http.StatusOK, assignments)
}

func (a *API) listActiveAssignments(ctx forge.Context, _ *UserAssignmentsRequest) ([]*assignment.Assignment, error) {
	userID := ctx.Param("userId")
	if userID == "" {
		return nil, forge.BadRequest("user ID is required")
	}

	assignments, err := a.eng.ListActiveFor(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	return assignments, ctx.JSON(http.StatusOK, assignments)
}

func (a *API) listUserAssignments(ctx forge.Context, _ *UserAssignmentsRequest) ([]*assignment.Assignment, error) {
	userID := ctx.Param("userId")
	if userID == "" {
		return nil, forge.BadRequest("user ID is required")
	}

	assignments, err := a.eng.ListAllFor(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	return assignments, ctx.JSON(http.StatusOK, assignments)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
