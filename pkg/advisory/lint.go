package advisory

import (
	"fmt"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Issue is one determinism problem found in an expression.
type Issue struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Rule, i.Message)
}

// forbiddenCalls are functions whose results depend on something other than
// the note.
var forbiddenCalls = map[string]string{
	"now":    "now() is forbidden",
	"keys":   "map iteration (keys) is forbidden",
	"values": "map iteration (values) is forbidden",
}

// Lint parses every rule of p and reports what would make an advisory
// depend on anything but its input. A parse failure is reported as an issue
// rather than an error so a whole pack can be checked in one pass.
func Lint(p *Pack) ([]Issue, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("advisory: lint env: %w", err)
	}

	issues := []Issue{}
	for _, r := range p.Rules {
		parsed, iss := env.Parse(r.When)
		if iss != nil && iss.Err() != nil {
			issues = append(issues, Issue{Rule: r.ID, Message: iss.Err().Error()})
			continue
		}
		expr := parsed.Expr() //nolint:staticcheck // exprpb is still the walkable form
		walk(expr, func(msg string) {
			issues = append(issues, Issue{Rule: r.ID, Message: msg})
		})
	}
	return issues, nil
}

func walk(e *exprpb.Expr, report func(string)) {
	if e == nil {
		return
	}

	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_ConstExpr:
		if _, ok := k.ConstExpr.ConstantKind.(*exprpb.Constant_DoubleValue); ok {
			report("floating point literals are forbidden")
		}

	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		if msg, ok := forbiddenCalls[call.Function]; ok {
			report(msg)
		}
		walk(call.Target, report)
		for _, arg := range call.Args {
			walk(arg, report)
		}

	case *exprpb.Expr_SelectExpr:
		walk(k.SelectExpr.Operand, report)

	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			walk(el, report)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.Entries {
			walk(entry.GetMapKey(), report)
			walk(entry.Value, report)
		}

	case *exprpb.Expr_ComprehensionExpr:
		comp := k.ComprehensionExpr
		walk(comp.IterRange, report)
		walk(comp.AccuInit, report)
		walk(comp.LoopCondition, report)
		walk(comp.LoopStep, report)
		walk(comp.Result, report)
	}
}
