package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecheck/framecheck/internal/value"
)

func TestParse_Comparison(t *testing.T) {
	e, err := Parse("$velocity_y < 0")
	require.NoError(t, err)
	assert.Equal(t, "velocity_y", e.Var)
	assert.Equal(t, OpLT, e.Op)
	assert.Equal(t, value.Int(0), e.Literal)
	assert.Equal(t, "$velocity_y < 0", e.Text)
}

func TestParse_NoWhitespace(t *testing.T) {
	e, err := Parse("$hp>=3")
	require.NoError(t, err)
	assert.Equal(t, "hp", e.Var)
	assert.Equal(t, OpGE, e.Op)
	assert.Equal(t, value.Int(3), e.Literal)
}

func TestParse_NegativeLiteral(t *testing.T) {
	e, err := Parse("$velocity_y == -256")
	require.NoError(t, err)
	assert.Equal(t, value.Int(-256), e.Literal)
}

func TestParse_BoolLiteral(t *testing.T) {
	e, err := Parse("$grounded == true")
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), e.Literal)

	e, err = Parse("$grounded != false")
	require.NoError(t, err)
	assert.Equal(t, OpNE, e.Op)
}

func TestParse_RejectsConnectives(t *testing.T) {
	_, err := Parse("$x > 0 && $y > 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean connectives are not supported")
}

func TestParse_RejectsTrailingTokens(t *testing.T) {
	_, err := Parse("$x > 0 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing tokens")
}

func TestParse_RejectsMissingDollar(t *testing.T) {
	_, err := Parse("x > 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a $variable")
}

func TestParse_RejectsFloatLiteral(t *testing.T) {
	_, err := Parse("$x > 0.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not supported")
}

func TestParse_RejectsSingleEquals(t *testing.T) {
	_, err := Parse("$x = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use ==")
}

func TestParse_RejectsOrderedBool(t *testing.T) {
	_, err := Parse("$grounded < true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a numeric literal")
}

func TestParse_RejectsIncomplete(t *testing.T) {
	_, err := Parse("$x >")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete expression")
}

func TestEval_Ordered(t *testing.T) {
	e, err := Parse("$velocity_y < 0")
	require.NoError(t, err)

	res, err := e.Eval(map[string]value.Value{"velocity_y": value.Int(-128)})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, value.Int(-128), res.Actual)

	res, err = e.Eval(map[string]value.Value{"velocity_y": value.Int(0)})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, value.Int(0), res.Actual)
}

func TestEval_Equality(t *testing.T) {
	e, err := Parse("$grounded == true")
	require.NoError(t, err)

	res, err := e.Eval(map[string]value.Value{"grounded": value.Bool(true)})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = e.Eval(map[string]value.Value{"grounded": value.Bool(false)})
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestEval_UnknownVariable(t *testing.T) {
	e, err := Parse("$missing == 1")
	require.NoError(t, err)

	_, err = e.Eval(map[string]value.Value{"present": value.Int(1)})
	require.Error(t, err)

	var unknownErr *UnknownVariableError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "missing", unknownErr.Var)
}

func TestEval_KindMismatch(t *testing.T) {
	e, err := Parse("$x == 1")
	require.NoError(t, err)

	_, err = e.Eval(map[string]value.Value{"x": value.Bool(true)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable $x is bool but literal is int")
}
