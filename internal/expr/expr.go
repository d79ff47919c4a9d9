// Package expr implements the assertion expression grammar.
//
// The grammar is a single comparison and nothing more:
//
//	expr    = "$" ident op literal
//	op      = "<" | "<=" | ">" | ">=" | "==" | "!="
//	literal = integer | "true" | "false"
//
// Scripts observed in practice never combine comparisons, so boolean
// connectives are rejected outright with a distinct error rather than
// mis-parsed. This is a parsed AST, not an eval of arbitrary text.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/framecheck/framecheck/internal/value"
)

// Op is a comparison operator.
type Op string

const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// ordered reports whether the operator requires numeric operands.
func (o Op) ordered() bool {
	switch o {
	case OpLT, OpLE, OpGT, OpGE:
		return true
	default:
		return false
	}
}

// Expr is one parsed comparison against a named debug variable.
type Expr struct {
	// Var is the variable name, without the leading $.
	Var string

	// Op is the comparison operator.
	Op Op

	// Literal is the right-hand constant.
	Literal value.Value

	// Text is the original source, preserved verbatim for reports.
	Text string
}

// Result is the outcome of evaluating an expression against bindings.
type Result struct {
	Passed bool
	Actual value.Value
}

// UnknownVariableError reports an expression referencing a variable
// absent from its bindings. It is not an assertion failure: it means
// the script and the registry disagree, which is a harness defect.
type UnknownVariableError struct {
	Var  string
	Text string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("expression %q references unknown variable $%s", e.Text, e.Var)
}

// Parse parses source text into an Expr.
func Parse(text string) (*Expr, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(toks) < 3 {
		return nil, fmt.Errorf("incomplete expression %q: want $variable, operator, literal", text)
	}
	if len(toks) > 3 {
		// The usual cause is an attempted compound expression.
		if containsConnective(toks[3:]) {
			return nil, fmt.Errorf("unsupported expression %q: boolean connectives are not supported, use one assertion per comparison", text)
		}
		return nil, fmt.Errorf("unsupported expression %q: trailing tokens after literal", text)
	}

	varTok, opTok, litTok := toks[0], toks[1], toks[2]

	if !strings.HasPrefix(varTok, "$") {
		return nil, fmt.Errorf("expression %q: left-hand side must be a $variable", text)
	}
	name := varTok[1:]
	if name == "" || !validIdent(name) {
		return nil, fmt.Errorf("expression %q: invalid variable name %q", text, varTok)
	}

	op, err := parseOp(opTok)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", text, err)
	}

	lit, err := parseLiteral(litTok)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", text, err)
	}

	if op.ordered() && lit.Kind() != value.KindInt {
		return nil, fmt.Errorf("expression %q: operator %s requires a numeric literal", text, op)
	}

	return &Expr{Var: name, Op: op, Literal: lit, Text: text}, nil
}

// Eval evaluates the expression with $Var bound from bindings.
func (e *Expr) Eval(bindings map[string]value.Value) (Result, error) {
	actual, ok := bindings[e.Var]
	if !ok {
		return Result{}, &UnknownVariableError{Var: e.Var, Text: e.Text}
	}

	if actual.Kind() != e.Literal.Kind() {
		return Result{}, fmt.Errorf("expression %q: variable $%s is %s but literal is %s",
			e.Text, e.Var, actual.Kind(), e.Literal.Kind())
	}

	switch e.Op {
	case OpEQ:
		return Result{Passed: value.Equal(actual, e.Literal), Actual: actual}, nil
	case OpNE:
		return Result{Passed: !value.Equal(actual, e.Literal), Actual: actual}, nil
	}

	// Ordered comparison; parser guarantees an int literal, and the
	// kind check above guarantees an int actual.
	a := int64(actual.(value.Int))
	b := int64(e.Literal.(value.Int))
	var passed bool
	switch e.Op {
	case OpLT:
		passed = a < b
	case OpLE:
		passed = a <= b
	case OpGT:
		passed = a > b
	case OpGE:
		passed = a >= b
	default:
		return Result{}, fmt.Errorf("expression %q: unknown operator %s", e.Text, e.Op)
	}
	return Result{Passed: passed, Actual: actual}, nil
}

func parseOp(tok string) (Op, error) {
	switch Op(tok) {
	case OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE:
		return Op(tok), nil
	case "=":
		return "", fmt.Errorf("invalid operator %q (use ==)", tok)
	default:
		return "", fmt.Errorf("invalid operator %q", tok)
	}
}

func parseLiteral(tok string) (value.Value, error) {
	switch tok {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		if strings.ContainsAny(tok, ".eE") {
			return nil, fmt.Errorf("invalid literal %q: floats are not supported", tok)
		}
		return nil, fmt.Errorf("invalid literal %q: want an integer or boolean", tok)
	}
	return value.Int(n), nil
}

func validIdent(s string) bool {
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func containsConnective(toks []string) bool {
	for _, t := range toks {
		switch t {
		case "&&", "||", "and", "or":
			return true
		}
	}
	return false
}

// tokenize splits the expression into tokens. Operators need no
// surrounding whitespace: "$hp>=3" tokenizes the same as "$hp >= 3".
func tokenize(text string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			j := i + 1
			if j < len(text) && text[j] == '=' {
				j++
			}
			toks = append(toks, text[i:j])
			i = j
		case c == '&' || c == '|':
			j := i + 1
			if j < len(text) && text[j] == c {
				j++
			}
			toks = append(toks, text[i:j])
			i = j
		default:
			j := i
			for j < len(text) && !strings.ContainsRune(" \t<>=!&|", rune(text[j])) {
				j++
			}
			toks = append(toks, text[i:j])
			i = j
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return toks, nil
}
