package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/module"
)

func (a *API) registerModuleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("modules"))

	if err := g.POST("/modules", a.createModule,
		forge.WithSummary("Register module"),
		forge.WithDescription("Registers a business module and its resource definitions in the catalog."),
		forge.WithOperationID("createModule"),
		forge.WithRequestSchema(CreateModuleRequest{}),
		forge.WithCreatedResponse(&module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/modules", a.listModules,
		forge.WithSummary("List modules"),
		forge.WithDescription("Lists catalog entries with optional filters."),
		forge.WithOperationID("listModules"),
		forge.WithRequestSchema(ListModulesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Module list", []*module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/modules/:moduleId", a.getModule,
		forge.WithSummary("Get module"),
		forge.WithDescription("Returns a catalog entry."),
		forge.WithOperationID("getModule"),
		forge.WithResponseSchema(http.StatusOK, "Module details", &module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/modules/:moduleId", a.updateModule,
		forge.WithSummary("Update module"),
		forge.WithDescription("Updates a catalog entry. Replacing resources affects write-time rule validation only."),
		forge.WithOperationID("updateModule"),
		forge.WithRequestSchema(UpdateModuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated module", &module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/modules/:moduleId", a.deleteModule,
		forge.WithSummary("Delete module"),
		forge.WithDescription("Removes a catalog entry."),
		forge.WithOperationID("deleteModule"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createModule(ctx forge.Context, req *CreateModuleRequest) (*module.Module, error) {
	if req.Code == "" {
		return nil, forge.BadRequest("code is required")
	}
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	now := time.Now()
	m := &module.Module{
		ID:          id.NewModuleID(),
		TenantID:    bastion.TenantID(ctx.Context()),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Resources:   toResourceDefs(req.Resources),
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := a.eng.Store().CreateModule(ctx.Context(), m); err != nil {
		return nil, mapError(err)
	}

	return m, ctx.JSON(http.StatusCreated, m)
}

func (a *API) getModule(ctx forge.Context, _ *GetModuleRequest) (*module.Module, error) {
	modID, err := id.ParseModuleID(ctx.Param("moduleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid module ID: %v", err))
	}

	m, err := a.eng.Store().GetModule(ctx.Context(), modID)
	if err != nil {
		return nil, mapError(err)
	}
	if m == nil || !tenantOwned(ctx.Context(), m.TenantID) {
		return nil, forge.NotFound("module not found")
	}

	return m, ctx.JSON(http.StatusOK, m)
}

func (a *API) listModules(ctx forge.Context, req *ListModulesRequest) ([]*module.Module, error) {
	filter := &module.ListFilter{
		TenantID: bastion.TenantID(ctx.Context()),
		Search:   req.Search,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	}

	modules, err := a.eng.Store().ListModules(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return modules, ctx.JSON(http.StatusOK, modules)
}

func (a *API) updateModule(ctx forge.Context, req *UpdateModuleRequest) (*module.Module, error) {
	modID, err := id.ParseModuleID(ctx.Param("moduleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid module ID: %v", err))
	}

	m, err := a.eng.Store().GetModule(ctx.Context(), modID)
	if err != nil {
		return nil, mapError(err)
	}
	if m == nil || !tenantOwned(ctx.Context(), m.TenantID) {
		return nil, forge.NotFound("module not found")
	}

	if req.Name != "" {
		m.Name = req.Name
	}
	if req.Description != "" {
		m.Description = req.Description
	}
	if req.Resources != nil {
		m.Resources = toResourceDefs(req.Resources)
	}
	if req.Metadata != nil {
		m.Metadata = req.Metadata
	}
	m.UpdatedAt = time.Now()

	if err := a.eng.Store().UpdateModule(ctx.Context(), m); err != nil {
		return nil, mapError(err)
	}

	return m, ctx.JSON(http.StatusOK, m)
}

func (a *API) deleteModule(ctx forge.Context, _ *GetModuleRequest) (*struct{}, error) {
	modID, err := id.ParseModuleID(ctx.Param("moduleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid module ID: %v", err))
	}

	m, err := a.eng.Store().GetModule(ctx.Context(), modID)
	if err != nil {
		return nil, mapError(err)
	}
	if m == nil || !tenantOwned(ctx.Context(), m.TenantID) {
		return nil, forge.NotFound("module not found")
	}

	if err := a.eng.Store().DeleteModule(ctx.Context(), modID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func toResourceDefs(in []ResourceDef) []module.ResourceDef {
	if in == nil {
		return nil
	}
	out := make([]module.ResourceDef, len(in))
	for i, r := range in {
		def := module.ResourceDef{Name: r.Name, Actions: r.Actions}
		for _, f := range r.Fields {
			def.Fields = append(def.Fields, module.FieldDef{Name: f.Name, Type: f.Type})
		}
		out[i] = def
	}
	return out
}
