// Package middleware provides HTTP authorization middleware for Bastion.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/rule"
)

// Require enforces authorization. It resolves the user from the request
// context (Authsome user > anonymous) and evaluates whether the user may
// perform the given action on the resource. Unresolved users are denied.
func Require(eng *bastion.Engine, moduleCode, resource string, action rule.Action) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			if userID == "" {
				return denyResponse(ctx)
			}

			dec, err := eng.Evaluate(ctx.Context(), &bastion.EvaluateRequest{
				UserID:     userID,
				ModuleCode: moduleCode,
				Resource:   resource,
				Action:     action,
			})
			if err != nil || !dec.Allowed() {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the checks pass.
func RequireAny(eng *bastion.Engine, checks ...bastion.EvaluateRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			if userID == "" {
				return denyResponse(ctx)
			}
			for i := range checks {
				c := checks[i]
				c.UserID = userID
				dec, err := eng.Evaluate(ctx.Context(), &c)
				if err == nil && dec.Allowed() {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL checks pass.
func RequireAll(eng *bastion.Engine, checks ...bastion.EvaluateRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			if userID == "" {
				return denyResponse(ctx)
			}
			for i := range checks {
				c := checks[i]
				c.UserID = userID
				dec, err := eng.Evaluate(ctx.Context(), &c)
				if err != nil || !dec.Allowed() {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// resolveUser extracts the user from context via Forge's Authsome
// integration. An empty string means the request is unauthenticated.
func resolveUser(ctx forge.Context) string {
	return forge.UserIDFromContext(ctx.Context())
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
