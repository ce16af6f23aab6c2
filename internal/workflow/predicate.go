package workflow

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// EvaluatePredicate runs a gojq expression against a JSON-shaped context
// (per the resolved predicate-language Open Question) and reports the
// truthiness of its first output: no output, false and null are false,
// and any other value is true. An error value produced by the expression
// is returned as an error. An empty expression is true.
func EvaluatePredicate(expr string, ctx map[string]interface{}) (bool, error) {
	if expr == "" {
		return true, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return false, fmt.Errorf("parsing predicate %q: %w", expr, err)
	}

	iter := query.Run(toInterfaceMap(ctx))
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if evalErr, ok := v.(error); ok {
		return false, fmt.Errorf("evaluating predicate %q: %w", expr, evalErr)
	}

	switch result := v.(type) {
	case bool:
		return result, nil
	case nil:
		return false, nil
	default:
		return true, nil
	}
}

func toInterfaceMap(ctx map[string]interface{}) map[string]interface{} {
	if ctx == nil {
		return map[string]interface{}{}
	}
	return ctx
}
