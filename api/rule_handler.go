package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/rule"
)

func (a *API) registerRuleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("rules"))

	if err := g.POST("/rules", a.addRule,
		forge.WithSummary("Register access rule"),
		forge.WithDescription("Registers an access rule for a module/resource pair."),
		forge.WithOperationID("addRule"),
		forge.WithRequestSchema(AddRuleRequest{}),
		forge.WithCreatedResponse(&rule.AccessRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/rules", a.listRules,
		forge.WithSummary("List access rules"),
		forge.WithDescription("Lists active access rules for a module/resource pair."),
		forge.WithOperationID("listRules"),
		forge.WithRequestSchema(ListRulesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access rules", []*rule.AccessRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/rules/:ruleId", a.getRule,
		forge.WithSummary("Get access rule"),
		forge.WithDescription("Returns details of an access rule."),
		forge.WithOperationID("getRule"),
		forge.WithResponseSchema(http.StatusOK, "Access rule", &rule.AccessRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/rules/:ruleId", a.updateRule,
		forge.WithSummary("Update access rule"),
		forge.WithDescription("Updates an existing access rule."),
		forge.WithOperationID("updateRule"),
		forge.WithRequestSchema(UpdateRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated rule", &rule.AccessRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/rules/:ruleId", a.removeRule,
		forge.WithSummary("Remove access rule"),
		forge.WithDescription("Removes an access rule from the registry."),
		forge.WithOperationID("removeRule"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) addRule(ctx forge.Context, req *AddRuleRequest) (*rule.AccessRule, error) {
	if req.ModuleCode == "" || req.Resource == "" {
		return nil, forge.BadRequest("module_code and resource are required")
	}

	r, err := a.eng.AddRule(ctx.Context(), &bastion.AddRuleInput{
		ModuleCode:  req.ModuleCode,
		Resource:    req.Resource,
		Actions:     toActions(req.Actions),
		Conditions:  req.Conditions,
		Priority:    req.Priority,
		Description: req.Description,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRule(ctx forge.Context, _ *GetRuleRequest) (*rule.AccessRule, error) {
	ruleID, err := id.ParseAccessRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid rule ID: %v", err))
	}

	r, err := a.eng.GetRule(ctx.Context(), ruleID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) listRules(ctx forge.Context, req *ListRulesRequest) ([]*rule.AccessRule, error) {
	if req.ModuleCode == "" || req.Resource == "" {
		return nil, forge.BadRequest("module_code and resource are required")
	}

	rules, err := a.eng.ListRulesFor(ctx.Context(), req.ModuleCode, req.Resource)
	if err != nil {
		return nil, mapError(err)
	}

	return rules, ctx.JSON(http.StatusOK, rules)
}

func (a *API) updateRule(ctx forge.Context, req *UpdateRuleRequest) (*rule.AccessRule, error) {
	ruleID, err := id.ParseAccessRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid rule ID: %v", err))
	}

	r, err := a.eng.UpdateRule(ctx.Context(), ruleID, &bastion.UpdateRuleInput{
		Actions:     toActions(req.Actions),
		Conditions:  req.Conditions,
		Priority:    req.Priority,
		Active:      req.Active,
		Description: req.Description,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) removeRule(ctx forge.Context, _ *GetRuleRequest) (*struct{}, error) {
	ruleID, err := id.ParseAccessRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid rule ID: %v", err))
	}

	if err := a.eng.RemoveRule(ctx.Context(), ruleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func toActions(in []string) []rule.Action {
	if in == nil {
		return nil
	}
	out := make([]rule.Action, len(in))
	for i, s := range in {
		out[i] = rule.Action(s)
	}
	return out
}
