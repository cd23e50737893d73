package core

import "context"

type dispatcherKeyType struct{}
type jobPriorityKeyType struct{}

var (
	dispatcherKey  dispatcherKeyType
	jobPriorityKey jobPriorityKeyType
)

// FromContext returns the Dispatcher running the current job, or nil.
func FromContext(ctx context.Context) *Dispatcher {
	if v := ctx.Value(dispatcherKey); v != nil {
		return v.(*Dispatcher)
	}
	return nil
}

// PriorityFromContext returns the priority of the job that received ctx.
func PriorityFromContext(ctx context.Context) (Priority, bool) {
	if v := ctx.Value(jobPriorityKey); v != nil {
		return v.(Priority), true
	}
	return PriorityInvalid, false
}

func withJobPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, jobPriorityKey, p)
}
