// Package policy checks build plans against Rego rules.
package policy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
)

var ErrPolicyViolation = errors.New("policy violation")

// ViolationError lists the messages produced by the deny query.
type ViolationError struct {
	Violations []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPolicyViolation, strings.Join(e.Violations, "; "))
}

func (e *ViolationError) Unwrap() error {
	return ErrPolicyViolation
}

// Evaluator evaluates a deny query over policy modules.
type Evaluator struct {
	query   string
	modules map[string]string
}

func New(query string, modules map[string]string) *Evaluator {
	return &Evaluator{query: query, modules: modules}
}

// Check evaluates the query with the given input. Every value in the result is
// a violation; an undefined result means none. Violations are returned as a
// *ViolationError with the messages sorted.
func (e *Evaluator) Check(ctx context.Context, input map[string]any) error {
	opts := []func(*rego.Rego){
		rego.Query(e.query),
		rego.Input(input),
	}

	for _, name := range slices.Sorted(maps.Keys(e.modules)) {
		opts = append(opts, rego.Module(name, e.modules[name]))
	}

	rs, err := rego.New(opts...).Eval(ctx)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	var violations []string
	for _, r := range rs {
		for _, expr := range r.Expressions {
			violations = append(violations, messages(expr.Value)...)
		}
	}

	if len(violations) == 0 {
		return nil
	}

	slices.Sort(violations)
	return &ViolationError{Violations: violations}
}

func messages(v any) []string {
	switch v := v.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, fmt.Sprint(x))
		}
		return out
	case map[string]any:
		out := make([]string, 0, len(v))
		for k := range v {
			out = append(out, k)
		}
		return out
	case bool:
		if v {
			return []string{"denied"}
		}
		return nil
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}
