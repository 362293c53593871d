package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/rule"
)

func (a *API) registerScenarioRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("scenarios"))

	return g.POST("/scenarios/run", a.runScenario,
		forge.WithSummary("Run scenario"),
		forge.WithDescription("Evaluates a scripted sequence of access requests and compares the outcomes against expectations."),
		forge.WithOperationID("runScenario"),
		forge.WithRequestSchema(RunScenarioRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Scenario result", &bastion.ScenarioResult{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) runScenario(ctx forge.Context, req *RunScenarioRequest) (*bastion.ScenarioResult, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}
	if len(req.Requests) == 0 {
		return nil, forge.BadRequest("requests must not be empty")
	}

	sc := &bastion.Scenario{
		ID:     id.NewScenarioID(),
		Name:   req.Name,
		UserID: req.UserID,
	}
	if req.ScopeID != "" {
		scopeID, err := id.ParseScopeID(req.ScopeID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
		}
		sc.ScopeID = scopeID
	}
	for _, step := range req.Requests {
		sc.Requests = append(sc.Requests, bastion.ScenarioRequest{
			ModuleCode: step.ModuleCode,
			Resource:   step.Resource,
			Action:     rule.Action(step.Action),
			Record:     step.Record,
		})
	}
	for _, exp := range req.Expected {
		sc.Expected = append(sc.Expected, bastion.ScenarioExpectation{
			RequestIndex: exp.RequestIndex,
			Outcome:      bastion.Outcome(exp.Outcome),
			Reason:       exp.Reason,
		})
	}

	result, err := a.eng.RunScenario(ctx.Context(), sc)
	if err != nil {
		return nil, mapError(err)
	}

	return result, ctx.JSON(http.StatusOK, result)
}
