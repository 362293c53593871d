package decisionlog

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/plugin"
)

// Compile-time checks: the Recorder hooks the evaluation lifecycle.
var (
	_ plugin.Plugin        = (*Recorder)(nil)
	_ plugin.AfterEvaluate = (*Recorder)(nil)
)

const defaultCapacity = 1000

// Recorder is an engine plugin that keeps a bounded ring of recent
// decisions. Register it with bastion.WithPlugin.
type Recorder struct {
	mu       sync.RWMutex
	entries  []*Entry
	next     int
	full     bool
	capacity int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithCapacity sets how many decisions the recorder retains. Older
// entries are overwritten once the ring is full.
func WithCapacity(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// NewRecorder creates a decision recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(r)
	}
	r.entries = make([]*Entry, r.capacity)
	return r
}

// Name implements plugin.Plugin.
func (r *Recorder) Name() string { return "decisionlog" }

// OnAfterEvaluate implements plugin.AfterEvaluate.
func (r *Recorder) OnAfterEvaluate(ctx context.Context, req, dec any) error {
	evalReq, ok := req.(*bastion.EvaluateRequest)
	if !ok {
		return nil
	}
	decision, ok := dec.(*bastion.Decision)
	if !ok {
		return nil
	}

	e := &Entry{
		ID:         id.NewDecisionID(),
		TenantID:   bastion.TenantID(ctx),
		UserID:     evalReq.UserID,
		ModuleCode: evalReq.ModuleCode,
		Resource:   evalReq.Resource,
		Action:     string(evalReq.Action),
		Outcome:    string(decision.Outcome),
		Reason:     decision.Explanation,
		EvalTimeNs: decision.EvalTimeNs,
		CreatedAt:  time.Now().UTC(),
	}
	if !decision.MatchedRuleID.IsNil() {
		e.RuleID = decision.MatchedRuleID.String()
	}
	if !decision.AppliedScopeID.IsNil() {
		e.ScopeID = decision.AppliedScopeID.String()
	}

	r.mu.Lock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

// Query returns recorded decisions matching the filter, newest first.
func (r *Recorder) Query(filter *QueryFilter) []*Entry {
	if filter == nil {
		filter = &QueryFilter{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = r.capacity
	}

	var out []*Entry
	for i := 1; i <= size; i++ {
		// Walk backwards from the most recent slot.
		idx := (r.next - i + r.capacity) % r.capacity
		e := r.entries[idx]
		if e == nil || !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len returns the number of decisions currently retained.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return r.capacity
	}
	return r.next
}
