package bastion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store"
)

// Evaluate resolves a request to an allow/deny decision. This is the hot
// path: it runs against an immutable tenant snapshot taken at call start,
// so a concurrent write never produces a half-old/half-new decision.
//
// Evaluation fails closed. A user with no assignments, a request matching
// no rule, and a condition that does not hold all resolve to deny with an
// explanation; the only errors surfaced are infrastructure failures.
func (e *Engine) Evaluate(ctx context.Context, req *EvaluateRequest) (*Decision, error) {
	start := time.Now()
	tenant := tenantFromContext(ctx)

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, tenant.tenantID, req); ok {
			cached.EvalTimeNs = time.Since(start).Nanoseconds()
			return cached, nil
		}
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeEvaluate(ctx, req)
	}

	snap, err := e.snapshot(ctx, tenant.tenantID)
	if err != nil {
		return nil, err
	}

	dec := e.evaluateSnapshot(snap, req, start.UTC(), id.Nil)
	dec.EvalTimeNs = time.Since(start).Nanoseconds()

	if e.cache != nil {
		e.cache.Set(ctx, tenant.tenantID, req, dec)
	}
	if e.plugins != nil {
		e.plugins.EmitAfterEvaluate(ctx, req, dec)
	}
	return dec, nil
}

// candidate is one rule in the combined, priority-ordered evaluation list.
// Scope rules inherit their owning scope's creation order as priority.
type candidate struct {
	priority int
	order    int

	ruleID  id.ID
	scopeID id.ScopeID
	label   string

	scopeRule  *scope.Rule
	accessRule *rule.AccessRule
}

// evaluateSnapshot resolves one request against a snapshot. A non-nil only
// ID restricts the effective scopes to that single scope.
func (e *Engine) evaluateSnapshot(snap *store.Snapshot, req *EvaluateRequest, at time.Time, only id.ScopeID) *Decision {
	assigns := snap.ActiveAssignmentsFor(req.UserID, at)
	if len(assigns) == 0 {
		return &Decision{
			Outcome:     OutcomeDeny,
			Explanation: "user has no assignments",
		}
	}

	effective := effectiveScopes(snap, assigns)
	if !only.IsNil() {
		restricted := effective[:0:0]
		for _, s := range effective {
			if s.ID.String() == only.String() {
				restricted = append(restricted, s)
			}
		}
		effective = restricted
	}
	candidates := e.gatherCandidates(snap, effective, req)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].order < candidates[j].order
	})

	env := &predicate.Env{
		TenantID: snap.TenantID,
		UserID:   req.UserID,
		Record:   req.Record,
		Funcs:    e.funcs,
	}

	for _, c := range candidates {
		matched, err := e.candidateMatches(c, env)
		if err != nil {
			// Write-time validation should make this unreachable; a broken
			// rule never grants access.
			e.logger.Warn("rule evaluation failed",
				"rule_id", c.ruleID.String(), "error", err.Error())
			continue
		}
		if matched {
			return &Decision{
				Outcome:        OutcomeAllow,
				MatchedRuleID:  c.ruleID,
				AppliedScopeID: c.scopeID,
				Explanation:    c.label,
			}
		}
	}

	if holdsGlobalWildcard(snap, effective) {
		return &Decision{
			Outcome:     OutcomeAllow,
			Explanation: "global wildcard scope",
		}
	}

	explanation := "no rule matches the request"
	if len(candidates) > 0 {
		explanation = fmt.Sprintf("nearest rule %s did not match", candidates[0].ruleID)
	}
	return &Decision{Outcome: OutcomeDeny, Explanation: explanation}
}

// effectiveScopes resolves directly assigned, active scopes. Ancestors are
// consulted only by conflict detection; they never grant access.
func effectiveScopes(snap *store.Snapshot, assigns []*assignment.Assignment) []*scope.Scope {
	var out []*scope.Scope
	seen := make(map[string]bool)
	for _, a := range assigns {
		if !a.IsScope() {
			continue
		}
		key := a.ScopeID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		if s := snap.Scope(key); s != nil && s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// gatherCandidates collects matching scope rules and access rules.
func (e *Engine) gatherCandidates(snap *store.Snapshot, effective []*scope.Scope, req *EvaluateRequest) []candidate {
	var out []candidate

	if e.config.scopeRulesEnabled() {
		for _, s := range effective {
			for _, r := range snap.RulesForScope(s.ID.String()) {
				if !matchRule(r.ModuleCode, r.Resource, req.ModuleCode, req.Resource) {
					continue
				}
				out = append(out, candidate{
					priority:  s.Seq,
					order:     r.Position,
					ruleID:    r.ID,
					scopeID:   s.ID,
					label:     fmt.Sprintf("scope %q %s filter", s.Name, r.FilterKind),
					scopeRule: r,
				})
			}
		}
	}

	if e.config.accessRulesEnabled() {
		for _, r := range snap.AccessRules {
			if !r.Active || !r.AllowsAction(req.Action) {
				continue
			}
			if !matchRule(r.ModuleCode, r.Resource, req.ModuleCode, req.Resource) {
				continue
			}
			out = append(out, candidate{
				priority:   r.Priority,
				order:      r.Seq,
				ruleID:     r.ID,
				label:      fmt.Sprintf("access rule %s.%s", r.ModuleCode, r.Resource),
				accessRule: r,
			})
		}
	}
	return out
}

func (e *Engine) candidateMatches(c candidate, env *predicate.Env) (bool, error) {
	if c.scopeRule != nil {
		node := scopeRulePredicate(c.scopeRule, env.UserID)
		return predicate.Eval(node, env)
	}
	for i := range c.accessRule.Conditions {
		node := conditionPredicate(&c.accessRule.Conditions[i])
		ok, err := predicate.Eval(node, env)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// holdsGlobalWildcard reports the superuser shortcut: an effective
// Global-kind scope carrying an active rule with resource "*".
func holdsGlobalWildcard(snap *store.Snapshot, effective []*scope.Scope) bool {
	for _, s := range effective {
		if s.Kind != scope.KindGlobal {
			continue
		}
		for _, r := range snap.RulesForScope(s.ID.String()) {
			if r.Resource == "*" {
				return true
			}
		}
	}
	return false
}

// scopeRulePredicate translates a scope rule's filter kind to a predicate
// node.
func scopeRulePredicate(r *scope.Rule, userID string) *predicate.Node {
	switch r.FilterKind {
	case scope.FilterOwner:
		return predicate.Compare("owner_id", predicate.OpEquals, userID)
	case scope.FilterCustom:
		return r.CustomPredicate
	default:
		return predicate.Compare(r.FilterKind.AttributeField(), predicate.OpEquals, r.FilterValue)
	}
}

// conditionPredicate translates an access rule condition to a predicate
// node.
func conditionPredicate(c *rule.Condition) *predicate.Node {
	if c.Operator == rule.OpCustom {
		return c.Custom
	}
	return predicate.Compare(c.Field, c.Operator.PredicateOp(), c.Value)
}

// BuildFilterPredicate returns a composable row filter for bulk list
// queries: the OR of every matching, active rule's conditions, translated
// to predicate nodes. The caller's data layer ANDs the tree against its own
// base query; conditions never concatenate into literal query text.
//
// A nil tree with a nil error means the user is unrestricted (global
// wildcard scope). A user with no assignments fails closed with
// ErrUnknownUser; a user whose rules match nothing receives a tree that
// matches no rows.
func (e *Engine) BuildFilterPredicate(ctx context.Context, userID, moduleCode, resource string) (*predicate.Node, error) {
	tenant := tenantFromContext(ctx)
	snap, err := e.snapshot(ctx, tenant.tenantID)
	if err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	assigns := snap.ActiveAssignmentsFor(userID, at)
	if len(assigns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	effective := effectiveScopes(snap, assigns)
	if holdsGlobalWildcard(snap, effective) {
		return nil, nil
	}

	req := &EvaluateRequest{UserID: userID, ModuleCode: moduleCode, Resource: resource, Action: rule.ActionRead}
	candidates := e.gatherCandidates(snap, effective, req)

	var branches []*predicate.Node
	for _, c := range candidates {
		if c.scopeRule != nil {
			branches = append(branches, scopeRulePredicate(c.scopeRule, userID))
			continue
		}
		var conds []*predicate.Node
		for i := range c.accessRule.Conditions {
			conds = append(conds, conditionPredicate(&c.accessRule.Conditions[i]))
		}
		if len(conds) == 1 {
			branches = append(branches, conds[0])
		} else if len(conds) > 1 {
			branches = append(branches, predicate.And(conds...))
		}
	}

	switch len(branches) {
	case 0:
		return matchNothing(), nil
	case 1:
		return branches[0], nil
	default:
		return predicate.Or(branches...), nil
	}
}

// matchNothing is a contradiction over a single field, the closed AST's way
// of expressing an empty result set.
func matchNothing() *predicate.Node {
	return predicate.And(
		predicate.Compare("owner_id", predicate.OpEquals, ""),
		predicate.Compare("owner_id", predicate.OpNotEquals, ""),
	)
}
