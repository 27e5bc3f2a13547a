package patch

import "context"

// BaseFunc is the target operation's original behavior.
type BaseFunc func(ctx context.Context, inv *Invocation) error

// Dispatch runs one invocation of target through the interceptor chain:
// before-hooks (highest priority first), then the effective replace
// interceptor or the base behavior, then after-hooks (lowest priority
// first). A target with no patches degrades to a plain base call.
//
// Interceptor slices are snapshotted under the read lock so a concurrent
// unload cannot mutate the chain mid-dispatch; entries removed during a
// dispatch still finish that dispatch.
func (c *Coordinator) Dispatch(ctx context.Context, target string, inv *Invocation, base BaseFunc) error {
	c.mu.RLock()
	var before, after, replace []entry
	if ts, ok := c.targets[target]; ok {
		before = append([]entry(nil), ts.before...)
		after = append([]entry(nil), ts.after...)
		replace = append([]entry(nil), ts.replace...)
	}
	c.mu.RUnlock()

	if inv.Target == "" {
		inv.Target = target
	}

	for _, e := range before {
		if err := e.fn(ctx, inv); err != nil {
			return err
		}
	}

	switch {
	case len(replace) > 0:
		if err := replace[0].fn(ctx, inv); err != nil {
			return err
		}
	case base != nil:
		if err := base(ctx, inv); err != nil {
			return err
		}
	}

	for _, e := range after {
		if err := e.fn(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}
