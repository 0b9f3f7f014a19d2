package client

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// celFilter wraps a compiled CEL program. When disabled, Eval always returns
// true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("size", cel.IntType),
		// parsed JSON payload, null when the payload is not JSON
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against one event. Evaluation errors count
// as no match.
func (f celFilter) Eval(name string, data []byte) bool {
	if !f.enabled {
		return true
	}
	var obj any
	_ = jsonAPI.Unmarshal(data, &obj)
	out, _, err := f.prog.Eval(map[string]any{
		"name":   name,
		"text":   string(data),
		"size":   int64(len(data)),
		"json":   obj,
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
