package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalPrecedence(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"100000 * 0.13", 13000},
		{"50000 + 50000 * 0.1", 55000},
		{"2 ** 10", 1024},
		{"2 ** 3 ** 2", 512}, // right-associative
		{"-2 ** 2", -4},      // unary binds looser than **
		{"7 // 2", 3},
		{"-7 // 2", -4}, // floored division
		{"7 % 3", 1},
		{"-7 % 3", 2}, // floored modulo
		{"10 / 4", 2.5},
		{"--5", 5},
		{"+3 - -2", 5},
	}

	for _, tc := range cases {
		got, err := evalExpression(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.InDelta(t, tc.want, got, 1e-9, tc.expr)
	}
}

func TestEvalErrors(t *testing.T) {
	exprs := []string{
		"",
		"1 / 0",
		"5 // 0",
		"5 % 0",
		"2 +",
		"(1 + 2",
		"1 ** ",
		"abc",
		"__import__('os')",
		"len(x)",
		"1; 2",
		"2 3",
	}

	for _, expr := range exprs {
		_, err := evalExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "130", formatResult(130))
	assert.Equal(t, "13 000", formatResult(13000))
	assert.Equal(t, "1 234 567", formatResult(1234567))
	assert.Equal(t, "-13 000", formatResult(-13000))
	assert.Equal(t, "2.50", formatResult(2.5))
	assert.Equal(t, "13 000.13", formatResult(13000.126))
	assert.Equal(t, "0", formatResult(0))
}

func TestFormatResultLargeIntegral(t *testing.T) {
	// Integral values past 1e15 still print without decimals.
	assert.Equal(t, "1 125 899 906 842 624", formatResult(1125899906842624)) // 2**50
	assert.Equal(t, "10 000 000 000 000 000", formatResult(1e16))
	assert.Equal(t, "-10 000 000 000 000 000", formatResult(-1e16))
}
