// Package patch implements the runtime interception registry.
//
// A patch attaches a before, after or replace interceptor to a named target
// operation on behalf of an owning mod. Targets keep explicit ordered
// interceptor lists consulted by Dispatch, the single indirection point, so
// ownership and removal stay well defined: unloading a mod removes exactly
// that owner's entries and leaves every other owner's ordering intact.
package patch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loadstone/loadstone/internal/ctxlog"
)

// Kind distinguishes how an interceptor relates to its target operation.
type Kind int

const (
	// Before interceptors run ahead of the target, highest priority first.
	Before Kind = iota
	// After interceptors run behind the target, lowest priority first,
	// symmetric to Before.
	After
	// Replace interceptors run instead of the target's base behavior. When
	// several owners register one, the highest priority wins.
	Replace
)

// String returns a human-readable kind for logs.
func (k Kind) String() string {
	switch k {
	case Before:
		return "before"
	case After:
		return "after"
	case Replace:
		return "replace"
	}
	return "unknown"
}

// Invocation carries one dispatch through the interceptor chain.
type Invocation struct {
	// Target is the operation identity being dispatched.
	Target string
	// Args are the operation inputs; interceptors may rewrite them.
	Args map[string]any
	// Result is set by the base behavior or a replace interceptor, and may
	// be rewritten by after interceptors.
	Result any
}

// InterceptFunc is the logic attached by a patch.
type InterceptFunc func(ctx context.Context, inv *Invocation) error

// Patch is one interceptor registration request.
type Patch struct {
	Target   string
	Kind     Kind
	Priority int
	Fn       InterceptFunc
}

// Record is the bookkeeping entry for an applied patch.
type Record struct {
	ID        uuid.UUID
	Target    string
	Owner     string
	Kind      Kind
	Priority  int
	AppliedAt time.Time
}

// ApplicationError reports one patch that failed to attach. Other patches
// from the same owner are still attempted.
type ApplicationError struct {
	Owner  string
	Target string
	Err    error
}

// Error implements the error interface.
func (e *ApplicationError) Error() string {
	return fmt.Sprintf("patch by %q on %q failed to attach: %v", e.Owner, e.Target, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// entry is one applied interceptor on a target.
type entry struct {
	rec Record
	fn  InterceptFunc
	seq uint64
}

// targetSet holds the ordered interceptor lists for one target operation.
type targetSet struct {
	before  []entry
	after   []entry
	replace []entry
}

func (t *targetSet) empty() bool {
	return len(t.before) == 0 && len(t.after) == 0 && len(t.replace) == 0
}

// Coordinator is the ownership-tracked interception registry. It has a
// single logical writer (the loader); read queries and dispatch take the
// shared side of the lock.
type Coordinator struct {
	mu       sync.RWMutex
	targets  map[string]*targetSet
	seq      uint64
	disposed bool
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{targets: make(map[string]*targetSet)}
}

// Apply registers the given patches on behalf of owner and returns the
// records of those that attached. A patch that fails validation is logged
// and skipped; the rest are still attempted.
func (c *Coordinator) Apply(ctx context.Context, owner string, patches []Patch) []Record {
	logger := ctxlog.FromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		logger.Warn("Ignoring patch application on disposed coordinator.", "owner", owner)
		return nil
	}

	records := make([]Record, 0, len(patches))
	for _, p := range patches {
		if err := validate(p); err != nil {
			appErr := &ApplicationError{Owner: owner, Target: p.Target, Err: err}
			logger.Error("Skipping patch that failed to attach.", "owner", owner, "target", p.Target, "error", appErr)
			continue
		}

		c.seq++
		e := entry{
			rec: Record{
				ID:        uuid.New(),
				Target:    p.Target,
				Owner:     owner,
				Kind:      p.Kind,
				Priority:  p.Priority,
				AppliedAt: time.Now(),
			},
			fn:  p.Fn,
			seq: c.seq,
		}

		ts, ok := c.targets[p.Target]
		if !ok {
			ts = &targetSet{}
			c.targets[p.Target] = ts
		}
		switch p.Kind {
		case Before:
			ts.before = insertOrdered(ts.before, e, beforeLess)
		case After:
			ts.after = insertOrdered(ts.after, e, afterLess)
		case Replace:
			ts.replace = insertOrdered(ts.replace, e, replaceLess)
		}

		logger.Debug("Patch applied.", "owner", owner, "target", p.Target, "kind", p.Kind.String(), "priority", p.Priority)
		records = append(records, e.rec)
	}
	return records
}

// Remove detaches every patch owned by owner from every target it touches,
// leaving other owners' patches intact and correctly ordered. Removing an
// owner with no patches is a no-op.
func (c *Coordinator) Remove(ctx context.Context, owner string) {
	logger := ctxlog.FromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for target, ts := range c.targets {
		ts.before, removed = dropOwner(ts.before, owner, removed)
		ts.after, removed = dropOwner(ts.after, owner, removed)
		ts.replace, removed = dropOwner(ts.replace, owner, removed)
		if ts.empty() {
			delete(c.targets, target)
		}
	}
	if removed > 0 {
		logger.Debug("Patches removed.", "owner", owner, "count", removed)
	}
}

// Dispose drops every registered patch. Safe to call repeatedly.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = make(map[string]*targetSet)
	c.disposed = true
}

// Owners returns the distinct owner ids with at least one patch on target,
// in deterministic order.
func (c *Coordinator) Owners(target string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts, ok := c.targets[target]
	if !ok {
		return nil
	}
	set := make(map[string]struct{})
	for _, lists := range [][]entry{ts.before, ts.after, ts.replace} {
		for _, e := range lists {
			set[e.rec.Owner] = struct{}{}
		}
	}
	owners := make([]string, 0, len(set))
	for o := range set {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}

// RecordsOf returns the records of every patch owned by owner.
func (c *Coordinator) RecordsOf(owner string) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var records []Record
	for _, ts := range c.targets {
		for _, lists := range [][]entry{ts.before, ts.after, ts.replace} {
			for _, e := range lists {
				if e.rec.Owner == owner {
					records = append(records, e.rec)
				}
			}
		}
	}
	return records
}

func validate(p Patch) error {
	if p.Target == "" {
		return fmt.Errorf("patch target must not be empty")
	}
	if p.Fn == nil {
		return fmt.Errorf("patch function must not be nil")
	}
	switch p.Kind {
	case Before, After, Replace:
		return nil
	}
	return fmt.Errorf("unknown patch kind %d", p.Kind)
}

// beforeLess orders before-hooks highest priority first; ties keep
// application order.
func beforeLess(a, b entry) bool {
	if a.rec.Priority != b.rec.Priority {
		return a.rec.Priority > b.rec.Priority
	}
	return a.seq < b.seq
}

// afterLess orders after-hooks lowest priority first, symmetric to before.
func afterLess(a, b entry) bool {
	if a.rec.Priority != b.rec.Priority {
		return a.rec.Priority < b.rec.Priority
	}
	return a.seq < b.seq
}

// replaceLess orders replace candidates so the effective one (highest
// priority, latest applied on ties) sits first.
func replaceLess(a, b entry) bool {
	if a.rec.Priority != b.rec.Priority {
		return a.rec.Priority > b.rec.Priority
	}
	return a.seq > b.seq
}

func insertOrdered(list []entry, e entry, less func(a, b entry) bool) []entry {
	i := sort.Search(len(list), func(i int) bool { return less(e, list[i]) })
	list = append(list, entry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	return list
}

func dropOwner(list []entry, owner string, removed int) ([]entry, int) {
	kept := list[:0]
	for _, e := range list {
		if e.rec.Owner == owner {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}
