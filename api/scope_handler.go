package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/scope"
)

func (a *API) registerScopeRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("scopes"))

	if err := g.POST("/scopes", a.createScope,
		forge.WithSummary("Create scope"),
		forge.WithDescription("Creates a new scope in the tenant's hierarchy."),
		forge.WithOperationID("createScope"),
		forge.WithRequestSchema(CreateScopeRequest{}),
		forge.WithCreatedResponse(&scope.Scope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/scopes", a.listScopes,
		forge.WithSummary("List scopes"),
		forge.WithDescription("Lists scopes with optional filters."),
		forge.WithOperationID("listScopes"),
		forge.WithRequestSchema(ListScopesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Scope list", []*scope.Scope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/scopes/:scopeId", a.getScope,
		forge.WithSummary("Get scope"),
		forge.WithDescription("Returns details of a specific scope."),
		forge.WithOperationID("getScope"),
		forge.WithResponseSchema(http.StatusOK, "Scope details", &scope.Scope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/scopes/:scopeId", a.updateScope,
		forge.WithSummary("Update scope"),
		forge.WithDescription("Updates an existing scope. Moving a scope revalidates the hierarchy."),
		forge.WithOperationID("updateScope"),
		forge.WithRequestSchema(UpdateScopeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated scope", &scope.Scope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/scopes/:scopeId", a.deleteScope,
		forge.WithSummary("Delete scope"),
		forge.WithDescription("Deletes a scope. Set cascade=true to delete the whole subtree."),
		forge.WithOperationID("deleteScope"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/scopes/:scopeId/clone", a.cloneScope,
		forge.WithSummary("Clone scope"),
		forge.WithDescription("Clones a scope and its rules under the same parent."),
		forge.WithOperationID("cloneScope"),
		forge.WithRequestSchema(CloneScopeRequest{}),
		forge.WithCreatedResponse(&scope.Scope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/scopes/:scopeId/subtree", a.getSubtree,
		forge.WithSummary("Get scope subtree"),
		forge.WithDescription("Returns the scope and all its descendants as a tree."),
		forge.WithOperationID("getScopeSubtree"),
		forge.WithResponseSchema(http.StatusOK, "Scope subtree", &scope.Tree{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/scopes/:scopeId/ancestors", a.listAncestors,
		forge.WithSummary("List scope ancestors"),
		forge.WithDescription("Returns the chain of ancestors from the scope's parent to the root."),
		forge.WithOperationID("listScopeAncestors"),
		forge.WithResponseSchema(http.StatusOK, "Ancestor chain", []*scope.Scope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/scopes/:scopeId/rules", a.addScopeRule,
		forge.WithSummary("Add scope rule"),
		forge.WithDescription("Attaches a row filter rule to a scope."),
		forge.WithOperationID("addScopeRule"),
		forge.WithRequestSchema(AddScopeRuleRequest{}),
		forge.WithCreatedResponse(&scope.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/scopes/:scopeId/rules", a.listScopeRules,
		forge.WithSummary("List scope rules"),
		forge.WithDescription("Lists the rules attached to a scope in evaluation order."),
		forge.WithOperationID("listScopeRules"),
		forge.WithResponseSchema(http.StatusOK, "Scope rules", []*scope.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/scope-rules/:ruleId", a.updateScopeRule,
		forge.WithSummary("Update scope rule"),
		forge.WithDescription("Updates an existing scope rule."),
		forge.WithOperationID("updateScopeRule"),
		forge.WithRequestSchema(UpdateScopeRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated rule", &scope.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/scope-rules/:ruleId", a.removeScopeRule,
		forge.WithSummary("Remove scope rule"),
		forge.WithDescription("Detaches a rule from its scope."),
		forge.WithOperationID("removeScopeRule"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createScope(ctx forge.Context, req *CreateScopeRequest) (*scope.Scope, error) {
	in := &bastion.CreateScopeInput{
		Name:     req.Name,
		Kind:     scope.Kind(req.Kind),
		Metadata: req.Metadata,
	}

	if req.ParentID != "" {
		pid, err := id.ParseScopeID(req.ParentID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid parent_id: %v", err))
		}
		in.ParentID = &pid
	}

	s, err := a.eng.CreateScope(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	return s, ctx.JSON(http.StatusCreated, s)
}

func (a *API) getScope(ctx forge.Context, _ *GetScopeRequest) (*scope.Scope, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	s, err := a.eng.GetScope(ctx.Context(), scopeID)
	if err != nil {
		return nil, mapError(err)
	}

	return s, ctx.JSON(http.StatusOK, s)
}

func (a *API) listScopes(ctx forge.Context, req *ListScopesRequest) ([]*scope.Scope, error) {
	filter := &scope.ListFilter{
		Kind:   scope.Kind(req.Kind),
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}
	if req.Active != "" {
		active, err := strconv.ParseBool(req.Active)
		if err != nil {
			return nil, forge.BadRequest("active must be true or false")
		}
		filter.Active = &active
	}

	scopes, err := a.eng.ListScopes(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return scopes, ctx.JSON(http.StatusOK, scopes)
}

func (a *API) updateScope(ctx forge.Context, req *UpdateScopeRequest) (*scope.Scope, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	in := &bastion.UpdateScopeInput{
		Name:     req.Name,
		Active:   req.Active,
		Metadata: req.Metadata,
	}
	if req.ParentID != "" {
		pid, err := id.ParseScopeID(req.ParentID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid parent_id: %v", err))
		}
		in.ParentID = &pid
	}

	s, err := a.eng.UpdateScope(ctx.Context(), scopeID, in)
	if err != nil {
		return nil, mapError(err)
	}

	return s, ctx.JSON(http.StatusOK, s)
}

func (a *API) deleteScope(ctx forge.Context, req *DeleteScopeRequest) (*struct{}, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	if err := a.eng.DeleteScope(ctx.Context(), scopeID, req.Cascade); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) cloneScope(ctx forge.Context, req *CloneScopeRequest) (*scope.Scope, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	s, err := a.eng.CloneScope(ctx.Context(), scopeID, req.Name)
	if err != nil {
		return nil, mapError(err)
	}

	return s, ctx.JSON(http.StatusCreated, s)
}

func (a *API) getSubtree(ctx forge.Context, _ *GetScopeRequest) (*scope.Tree, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	tree, err := a.eng.GetSubtree(ctx.Context(), scopeID)
	if err != nil {
		return nil, mapError(err)
	}

	return tree, ctx.JSON(http.StatusOK, tree)
}

func (a *API) listAncestors(ctx forge.Context, _ *GetScopeRequest) ([]*scope.Scope, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	ancestors, err := a.eng.ListAncestors(ctx.Context(), scopeID)
	if err != nil {
		return nil, mapError(err)
	}

	return ancestors, ctx.JSON(http.StatusOK, ancestors)
}

func (a *API) addScopeRule(ctx forge.Context, req *AddScopeRuleRequest) (*scope.Rule, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	r, err := a.eng.AddScopeRule(ctx.Context(), scopeID, &bastion.AddScopeRuleInput{
		ModuleCode:      req.ModuleCode,
		Resource:        req.Resource,
		FilterKind:      scope.FilterKind(req.FilterKind),
		FilterValue:     req.FilterValue,
		CustomPredicate: req.CustomPredicate,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) listScopeRules(ctx forge.Context, _ *GetScopeRequest) ([]*scope.Rule, error) {
	scopeID, err := id.ParseScopeID(ctx.Param("scopeId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope ID: %v", err))
	}

	rules, err := a.eng.ListScopeRules(ctx.Context(), scopeID)
	if err != nil {
		return nil, mapError(err)
	}

	return rules, ctx.JSON(http.StatusOK, rules)
}

func (a *API) updateScopeRule(ctx forge.Context, req *UpdateScopeRuleRequest) (*scope.Rule, error) {
	ruleID, err := id.ParseScopeRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid rule ID: %v", err))
	}

	r, err := a.eng.UpdateScopeRule(ctx.Context(), ruleID, &bastion.UpdateScopeRuleInput{
		FilterValue:     req.FilterValue,
		CustomPredicate: req.CustomPredicate,
		Active:          req.Active,
		Position:        req.Position,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) removeScopeRule(ctx forge.Context, _ *GetScopeRuleRequest) (*struct{}, error) {
	ruleID, err := id.ParseScopeRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid rule ID: %v", err))
	}

	if err := a.eng.RemoveScopeRule(ctx.Context(), ruleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
