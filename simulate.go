package bastion

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/bastion/rule"
)

// RunScenario replays a named set of requests against the evaluator and
// compares each outcome with its expectation. The run is read-only: it
// snapshots the tenant once and never mutates scopes, rules, or
// assignments, so the same scenario replays deterministically against the
// same state. A scenario with ScopeID set replays only the grants held
// through that scope. The only I/O is the snapshot fetch; evaluation itself
// never blocks.
func (e *Engine) RunScenario(ctx context.Context, sc *Scenario) (*ScenarioResult, error) {
	if sc.UserID == "" {
		return nil, fmt.Errorf("%w: scenario user id is required", ErrValidation)
	}
	if len(sc.Requests) == 0 {
		return nil, fmt.Errorf("%w: scenario has no requests", ErrValidation)
	}

	expected := make(map[int]ScenarioExpectation, len(sc.Expected))
	for _, exp := range sc.Expected {
		if exp.RequestIndex < 0 || exp.RequestIndex >= len(sc.Requests) {
			return nil, fmt.Errorf("%w: expectation references request %d of %d", ErrValidation, exp.RequestIndex, len(sc.Requests))
		}
		expected[exp.RequestIndex] = exp
	}

	tenant := tenantFromContext(ctx)
	snap, err := e.snapshot(ctx, tenant.tenantID)
	if err != nil {
		return nil, err
	}
	if !sc.ScopeID.IsNil() && snap.Scope(sc.ScopeID.String()) == nil {
		return nil, fmt.Errorf("%w: scenario scope %s", ErrScopeNotFound, sc.ScopeID)
	}

	start := time.Now()
	result := &ScenarioResult{
		ScenarioID: sc.ID,
		Name:       sc.Name,
		Passed:     true,
	}

	for i, sr := range sc.Requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reqStart := time.Now()
		action := sr.Action
		if action == "" {
			action = rule.ActionRead
		}
		dec := e.evaluateSnapshot(snap, &EvaluateRequest{
			UserID:     sc.UserID,
			ModuleCode: sr.ModuleCode,
			Resource:   sr.Resource,
			Action:     action,
			Record:     sr.Record,
		}, reqStart.UTC(), sc.ScopeID)
		elapsed := time.Since(reqStart).Nanoseconds()
		dec.EvalTimeNs = elapsed

		rr := RequestResult{
			Index:     i,
			Decision:  dec,
			Passed:    true,
			ElapsedNs: elapsed,
		}
		if exp, ok := expected[i]; ok {
			rr.Expected = exp.Outcome
			if dec.Outcome != exp.Outcome {
				rr.Passed = false
				rr.Diagnostic = fmt.Sprintf("expected %s, got %s: %s", exp.Outcome, dec.Outcome, dec.Explanation)
				result.Passed = false
			}
		}
		result.Requests = append(result.Requests, rr)
	}
	result.TotalTimeNs = time.Since(start).Nanoseconds()

	if e.plugins != nil {
		e.plugins.EmitScenarioCompleted(ctx, result)
	}
	e.logger.Debug("scenario completed",
		"name", sc.Name, "user_id", sc.UserID, "requests", len(sc.Requests), "passed", result.Passed)
	return result, nil
}
