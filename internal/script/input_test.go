package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecheck/framecheck/internal/profile"
)

func nethercore(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Builtin().Find("nethercore")
	require.NoError(t, err)
	return p
}

func TestParseInput_Normalizes(t *testing.T) {
	p := nethercore(t)

	a, err := ParseInput("right+a", p)
	require.NoError(t, err)
	b, err := ParseInput("a+right", p)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, "a+right", a.Encode())
	assert.Equal(t, a.Encode(), b.Encode())
	assert.True(t, a.Has("a"))
	assert.True(t, a.Has("right"))
	assert.False(t, a.Has("left"))
}

func TestParseInput_Neutral(t *testing.T) {
	in, err := ParseInput("", nethercore(t))
	require.NoError(t, err)
	assert.True(t, in.IsNeutral())
	assert.Equal(t, "", in.Encode())
	assert.True(t, in.Equal(Neutral()))
}

func TestParseInput_UnknownToken(t *testing.T) {
	_, err := ParseInput("fire", nethercore(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown button token "fire"`)
}

func TestParseInput_DuplicateToken(t *testing.T) {
	_, err := ParseInput("a+a", nethercore(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate button token")
}

func TestParseInput_EmptyToken(t *testing.T) {
	_, err := ParseInput("a++b", nethercore(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty button token")
}

func TestInputState_TokensIsACopy(t *testing.T) {
	in, err := ParseInput("left+b", nethercore(t))
	require.NoError(t, err)

	toks := in.Tokens()
	toks[0] = "mutated"
	assert.Equal(t, "b+left", in.Encode())
}
