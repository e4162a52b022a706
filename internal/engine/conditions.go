package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

type (
	// Predicate is a named guard over the job context
	Predicate func(api.Args) bool

	// Conditions resolves step guards. Named predicates are looked up
	// first; unknown bare names pass; anything else is compiled as an
	// expression
	Conditions struct {
		predicates map[string]Predicate
		exprs      map[string]Expr
		mu         sync.RWMutex
	}
)

var bareName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewConditions creates a Conditions populated with the built-in named
// predicates
func NewConditions() *Conditions {
	c := &Conditions{
		predicates: map[string]Predicate{},
		exprs:      map[string]Expr{},
	}
	for name, p := range builtinPredicates() {
		c.predicates[name] = p
	}
	return c
}

func builtinPredicates() map[string]Predicate {
	flag := func(key api.Name) Predicate {
		return func(args api.Args) bool {
			return args.GetBool(key, false)
		}
	}
	retryFailed := func(args api.Args) bool {
		return args.GetBool("retry_attempted", false) &&
			!args.GetBool("retry_succeeded", false)
	}
	// a retryable failure that no retry ever ran for still needs a human
	retryMissed := func(args api.Args) bool {
		return args.GetBool("retryable", false) &&
			!args.GetBool("retry_attempted", false)
	}

	return map[string]Predicate{
		"tests_passed":             flag("tests_passed"),
		"staging_tests_passed":     flag("staging_tests_passed"),
		"integration_tests_passed": flag("integration_tests_passed"),
		"build_succeeded":          flag("build_succeeded"),
		"deployment_ready": func(args api.Args) bool {
			return args.GetString("deployment_state", "") == "READY"
		},
		"retry_failed": retryFailed,
		"should_escalate": func(args api.Args) bool {
			return args.GetBool("should_escalate", false) ||
				retryFailed(args) || retryMissed(args)
		},
		"is_production_branch": func(args api.Args) bool {
			branch := args.GetString("branch", "")
			return strings.HasPrefix(branch, "release/") ||
				args.GetString("environment", "") == "production"
		},
	}
}

// Define adds or replaces a named predicate
func (c *Conditions) Define(name string, p Predicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predicates[name] = p
}

// Has reports whether name is a defined predicate
func (c *Conditions) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.predicates[name]
	return ok
}

// Compile checks that a condition can be evaluated, caching the compiled
// form of expressions. Empty conditions and bare names always compile
func (c *Conditions) Compile(cond string) error {
	cond = strings.TrimSpace(cond)
	if cond == "" || bareName.MatchString(cond) {
		return nil
	}
	_, err := c.expr(cond)
	return err
}

// Evaluate resolves a condition against the job context. An empty
// condition is true, as is a bare name with no predicate defined
func (c *Conditions) Evaluate(cond string, args api.Args) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	c.mu.RLock()
	p, ok := c.predicates[cond]
	c.mu.RUnlock()
	if ok {
		return p(args), nil
	}

	if bareName.MatchString(cond) {
		slog.Debug("Unknown condition, allowing step",
			slog.String("condition", cond))
		return true, nil
	}

	e, err := c.expr(cond)
	if err != nil {
		return false, err
	}
	doc, err := json.Marshal(args)
	if err != nil {
		return false, fmt.Errorf("%w: encode context: %s", ErrValidation, err)
	}
	return EvalExpr(e, doc, c.lookup(args)), nil
}

func (c *Conditions) lookup(args api.Args) func(string) (any, bool) {
	return func(name string) (any, bool) {
		c.mu.RLock()
		p, ok := c.predicates[name]
		c.mu.RUnlock()
		if !ok {
			return nil, false
		}
		return p(args), true
	}
}

func (c *Conditions) expr(cond string) (Expr, error) {
	c.mu.RLock()
	e, ok := c.exprs[cond]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := ParseExpr(cond)
	if err != nil {
		slog.Warn("Invalid condition",
			slog.String("condition", cond),
			log.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.exprs[cond] = e
	c.mu.Unlock()
	return e, nil
}
