package helpers

import (
	"context"
	"sync"
	"time"

	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type (
	// MockActions is a configurable set of actions for testing. Each name
	// returns its configured response or error and records the context it
	// was invoked with
	MockActions struct {
		responses map[api.ActionName]api.Args
		errors    map[api.ActionName]error
		blocks    map[api.ActionName]chan struct{}
		invoked   []api.ActionName
		inputs    map[api.ActionName][]api.Args
		invokedCh map[api.ActionName]chan struct{}
		mu        sync.Mutex
	}

	// MockNotifier records every event it is asked to deliver
	MockNotifier struct {
		err    error
		events []*api.JobEvent
		mu     sync.Mutex
	}
)

// NewMockActions creates an empty MockActions
func NewMockActions() *MockActions {
	return &MockActions{
		responses: map[api.ActionName]api.Args{},
		errors:    map[api.ActionName]error{},
		blocks:    map[api.ActionName]chan struct{}{},
		inputs:    map[api.ActionName][]api.Args{},
		invokedCh: map[api.ActionName]chan struct{}{},
	}
}

// RegisterAll binds each name to the mock in the registry
func (m *MockActions) RegisterAll(
	reg *engine.ActionRegistry, names ...api.ActionName,
) {
	for _, name := range names {
		_ = reg.Register(name, m.Action(name))
	}
}

// Action returns the mock bound to a single name
func (m *MockActions) Action(name api.ActionName) engine.Action {
	return engine.ActionFunc(
		func(ctx context.Context, args api.Args) (api.Args, error) {
			return m.invoke(ctx, name, args)
		},
	)
}

func (m *MockActions) invoke(
	ctx context.Context, name api.ActionName, args api.Args,
) (api.Args, error) {
	m.mu.Lock()
	m.invoked = append(m.invoked, name)
	m.inputs[name] = append(m.inputs[name], args.Clone())
	if ch, ok := m.invokedCh[name]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	block := m.blocks[name]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[name]; ok {
		return nil, err
	}
	return m.responses[name], nil
}

// SetResponse configures the context update an action returns
func (m *MockActions) SetResponse(name api.ActionName, res api.Args) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[name] = res
}

// SetError configures an action to fail
func (m *MockActions) SetError(name api.ActionName, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[name] = err
}

// Block makes an action wait until the returned release func is called
func (m *MockActions) Block(name api.ActionName) func() {
	ch := make(chan struct{})
	m.mu.Lock()
	m.blocks[name] = ch
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// Invocations returns every invoked action name, in invocation order
func (m *MockActions) Invocations() []api.ActionName {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]api.ActionName, len(m.invoked))
	copy(res, m.invoked)
	return res
}

// Inputs returns the contexts an action was invoked with
func (m *MockActions) Inputs(name api.ActionName) []api.Args {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]api.Args, len(m.inputs[name]))
	copy(res, m.inputs[name])
	return res
}

// WasInvoked returns whether an action was invoked
func (m *MockActions) WasInvoked(name api.ActionName) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs[name]) > 0
}

// WaitForInvocation blocks until an action is invoked or the timeout expires
func (m *MockActions) WaitForInvocation(
	name api.ActionName, timeout time.Duration,
) bool {
	m.mu.Lock()
	if len(m.inputs[name]) > 0 {
		m.mu.Unlock()
		return true
	}
	ch, ok := m.invokedCh[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.invokedCh[name] = ch
	}
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return m.WasInvoked(name)
	}
}

// NewMockNotifier creates a MockNotifier that accepts every event
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify records the event and returns the configured error
func (n *MockNotifier) Notify(_ context.Context, ev *api.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

// SetError makes every later Notify call fail
func (n *MockNotifier) SetError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Events returns every event delivered so far
func (n *MockNotifier) Events() []*api.JobEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	res := make([]*api.JobEvent, len(n.events))
	copy(res, n.events)
	return res
}
