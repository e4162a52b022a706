package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type (
	// Action performs one named step. It receives a deep copy of the job
	// context that it may modify freely, and returns the keys to merge back
	// into it. The returned Args are copied before they are stored, so an
	// action must not rely on later changes to them being observed
	Action interface {
		Execute(ctx context.Context, args api.Args) (api.Args, error)
	}

	// ActionFunc adapts a plain function to the Action interface
	ActionFunc func(ctx context.Context, args api.Args) (api.Args, error)

	// ActionRegistry maps action names to their implementations
	ActionRegistry struct {
		actions map[api.ActionName]Action
		mu      sync.RWMutex
	}
)

// Execute calls f
func (f ActionFunc) Execute(
	ctx context.Context, args api.Args,
) (api.Args, error) {
	return f(ctx, args)
}

// NewActionRegistry creates an empty ActionRegistry
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		actions: map[api.ActionName]Action{},
	}
}

// Register binds an action to a name, replacing any previous binding
func (r *ActionRegistry) Register(name api.ActionName, a Action) error {
	if name == "" || a == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAction, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = a
	return nil
}

// Get returns the action registered under name
func (r *ActionRegistry) Get(name api.ActionName) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names returns every registered action name, sorted
func (r *ActionRegistry) Names() []api.ActionName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]api.ActionName, 0, len(r.actions))
	for name := range r.actions {
		res = append(res, name)
	}
	slices.Sort(res)
	return res
}

// Invoke runs the named action directly, outside of any job
func (r *ActionRegistry) Invoke(
	ctx context.Context, name api.ActionName, args api.Args,
) (api.Args, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a.Execute(ctx, args)
}
