// Package expr implements a restricted expression language for workflow
// conditions and calculations. Expressions support arithmetic, comparison
// and logical operators, dotted variable paths and an allow-listed set of
// functions. There is no dynamic code execution, no assignment and no way
// to reach outside the supplied variable bag.
package expr

// Program is a parsed expression ready for repeated evaluation.
type Program struct {
	source string
	root   node
}

// Compile parses an expression. The returned program is safe for concurrent
// use.
func Compile(expression string) (*Program, error) {
	tokens, err := lex(expression)
	if err != nil {
		return nil, err
	}

	root, err := parse(tokens)
	if err != nil {
		return nil, err
	}

	return &Program{source: expression, root: root}, nil
}

// Source returns the original expression text.
func (p *Program) Source() string {
	return p.source
}

// Run evaluates the program against a variable bag. Unknown variables
// resolve to nil rather than failing, so workflows can probe optional
// fields.
func (p *Program) Run(vars map[string]any) (any, error) {
	return p.root.eval(vars)
}

// Evaluate compiles and runs an expression in one shot.
func Evaluate(expression string, vars map[string]any) (any, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}

	return program.Run(vars)
}

// EvaluateBool evaluates an expression and coerces the result to a boolean
// by truthiness.
func EvaluateBool(expression string, vars map[string]any) (bool, error) {
	result, err := Evaluate(expression, vars)
	if err != nil {
		return false, err
	}

	return Truthy(result), nil
}
