package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/rule"
)

func (a *API) registerAuthzRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/evaluate", a.evaluate,
		forge.WithSummary("Evaluate access"),
		forge.WithDescription("Evaluates whether a user may perform an action on a resource."),
		forge.WithOperationID("evaluate"),
		forge.WithRequestSchema(EvaluateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access decision", &bastion.Decision{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/batch-evaluate", a.batchEvaluate,
		forge.WithSummary("Evaluate multiple requests"),
		forge.WithDescription("Evaluates a batch of access requests in a single call."),
		forge.WithOperationID("batchEvaluate"),
		forge.WithRequestSchema(BatchEvaluateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access decisions", &BatchEvaluateResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/filter-predicate", a.filterPredicate,
		forge.WithSummary("Build filter predicate"),
		forge.WithDescription("Composes the row filter predicate a user's scopes impose on a resource."),
		forge.WithOperationID("buildFilterPredicate"),
		forge.WithRequestSchema(FilterPredicateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Composed predicate", &FilterPredicateResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) evaluate(ctx forge.Context, req *EvaluateRequest) (*bastion.Decision, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}
	if req.ModuleCode == "" || req.Resource == "" || req.Action == "" {
		return nil, forge.BadRequest("module_code, resource and action are required")
	}

	dec, err := a.eng.Evaluate(ctx.Context(), &bastion.EvaluateRequest{
		UserID:     req.UserID,
		ModuleCode: req.ModuleCode,
		Resource:   req.Resource,
		Action:     rule.Action(req.Action),
		Record:     req.Record,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return dec, ctx.JSON(http.StatusOK, dec)
}

func (a *API) batchEvaluate(ctx forge.Context, req *BatchEvaluateRequest) (*BatchEvaluateResponse, error) {
	if len(req.Requests) == 0 {
		return nil, forge.BadRequest("requests must not be empty")
	}

	resp := &BatchEvaluateResponse{Results: make([]*bastion.Decision, 0, len(req.Requests))}
	for _, r := range req.Requests {
		dec, err := a.eng.Evaluate(ctx.Context(), &bastion.EvaluateRequest{
			UserID:     r.UserID,
			ModuleCode: r.ModuleCode,
			Resource:   r.Resource,
			Action:     rule.Action(r.Action),
			Record:     r.Record,
		})
		if err != nil {
			return nil, mapError(err)
		}
		resp.Results = append(resp.Results, dec)
	}

	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) filterPredicate(ctx forge.Context, req *FilterPredicateRequest) (*FilterPredicateResponse, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}
	if req.ModuleCode == "" || req.Resource == "" {
		return nil, forge.BadRequest("module_code and resource are required")
	}

	pred, err := a.eng.BuildFilterPredicate(ctx.Context(), req.UserID, req.ModuleCode, req.Resource)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &FilterPredicateResponse{Predicate: pred}
	return resp, ctx.JSON(http.StatusOK, resp)
}
