package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/conflict"
)

func (a *API) registerConflictRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("conflicts"))

	return g.GET("/conflicts", a.listConflicts,
		forge.WithSummary("Detect conflicts"),
		forge.WithDescription("Detects assignment conflicts for a user, or for the whole tenant when user_id is omitted."),
		forge.WithOperationID("listConflicts"),
		forge.WithRequestSchema(ListConflictsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Detected conflicts", &ConflictListResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listConflicts(ctx forge.Context, req *ListConflictsRequest) (*ConflictListResponse, error) {
	var (
		conflicts []*conflict.Conflict
		err       error
	)
	if req.UserID != "" {
		conflicts, err = a.eng.DetectConflicts(ctx.Context(), req.UserID)
	} else {
		conflicts, err = a.eng.DetectTenantConflicts(ctx.Context())
	}
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ConflictListResponse{Conflicts: conflicts}
	return resp, ctx.JSON(http.StatusOK, resp)
}
