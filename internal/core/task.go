package core

import "context"

// CancelPolicy decides whether a backend call follows the cancellation of
// the request that started it.
type CancelPolicy int

const (
	// CancelNever detaches the call: once sent it runs to completion and its
	// result is applied even if the user navigated away.
	CancelNever CancelPolicy = iota
	// CancelWithCaller aborts the call when the caller's context ends.
	CancelWithCaller
)

// ParseCancelPolicy maps a config value to a policy. Unknown values fall
// back to CancelNever.
func ParseCancelPolicy(s string) CancelPolicy {
	if s == "caller" {
		return CancelWithCaller
	}
	return CancelNever
}

// Run executes fn under the policy. Values carried by ctx (request id,
// logger fields) are kept either way.
func Run[T any](ctx context.Context, policy CancelPolicy, fn func(context.Context) (T, error)) (T, error) {
	if policy == CancelNever {
		ctx = context.WithoutCancel(ctx)
	}
	return fn(ctx)
}

// RunErr is Run for calls without a result.
func RunErr(ctx context.Context, policy CancelPolicy, fn func(context.Context) error) error {
	_, err := Run(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
