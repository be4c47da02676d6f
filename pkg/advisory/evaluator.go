package advisory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/focusforward/caseguard/pkg/extract"
	"github.com/focusforward/caseguard/pkg/rules"
)

// DefaultCostLimit bounds the runtime cost of a single advisory.
const DefaultCostLimit = 50000

// Advisory is one fired rule.
type Advisory struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type compiled struct {
	rule Rule
	prg  cel.Program
}

// Evaluator runs the active pack. Programs are cached by expression source,
// so reloading a pack only compiles rules that changed.
type Evaluator struct {
	env   *cel.Env
	table *rules.Table

	mu       sync.RWMutex
	prgCache map[string]cel.Program
	pack     *Pack
	active   []compiled
}

// NewEvaluator compiles pack for use alongside table. A nil pack selects
// the default pack.
func NewEvaluator(pack *Pack, table *rules.Table) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("note", cel.StringType),
		cel.Variable("age", cel.IntType),
		cel.Variable("f", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("advisory: failed to create CEL environment: %w", err)
	}
	if table == nil {
		table = rules.Canonical()
	}
	if pack == nil {
		pack = Default()
	}

	e := &Evaluator{
		env:      env,
		table:    table,
		prgCache: make(map[string]cel.Program),
	}
	if err := e.Use(pack); err != nil {
		return nil, err
	}
	return e, nil
}

// Use swaps in pack after checking compatibility, determinism and
// compilation of every rule. On error the previous pack stays active.
func (e *Evaluator) Use(pack *Pack) error {
	if err := pack.Supports(e.table.Version()); err != nil {
		return err
	}
	issues, err := Lint(pack)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, iss := range issues {
			msgs[i] = iss.String()
		}
		return fmt.Errorf("advisory: pack %s@%s is not deterministic: %s", pack.Name, pack.Version, strings.Join(msgs, "; "))
	}

	active := make([]compiled, 0, len(pack.Rules))
	for _, r := range pack.Rules {
		prg, err := e.program(r.When)
		if err != nil {
			return fmt.Errorf("advisory: rule %q: %w", r.ID, err)
		}
		active = append(active, compiled{rule: r, prg: prg})
	}

	e.mu.Lock()
	e.pack = pack
	e.active = active
	e.mu.Unlock()
	return nil
}

// Pack returns the active pack.
func (e *Evaluator) Pack() *Pack {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pack
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Double check
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile: expression yields %s, want bool", t)
	}
	p, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(DefaultCostLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	e.prgCache[expr] = p
	return p, nil
}

// Evaluate returns the advisories that fire for note, in pack order. The
// result is never nil.
func (e *Evaluator) Evaluate(note string, fs extract.FeatureSet) ([]Advisory, error) {
	e.mu.RLock()
	active := e.active
	e.mu.RUnlock()

	age := int64(fs.Age)
	if fs.Age == 0 {
		age = -1
	}
	input := map[string]any{
		"note": extract.Normalize(note),
		"age":  age,
		"f":    fs.AsMap(),
	}

	out := []Advisory{}
	for _, c := range active {
		val, _, err := c.prg.Eval(input)
		if err != nil {
			return nil, fmt.Errorf("advisory: rule %q: eval: %w", c.rule.ID, err)
		}
		fired, ok := val.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("advisory: rule %q: result not bool", c.rule.ID)
		}
		if fired {
			out = append(out, Advisory{ID: c.rule.ID, Message: c.rule.Message})
		}
	}
	return out, nil
}

// Messages returns just the messages of advs.
func Messages(advs []Advisory) []string {
	out := make([]string, len(advs))
	for i, a := range advs {
		out[i] = a.Message
	}
	return out
}
