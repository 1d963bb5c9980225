package word_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmc-python/modelmachine/word"
)

func TestRoundTripBytes(t *testing.T) {
	for _, bits := range []uint{8, 16, 24, 32, 64} {
		w := word.New(bits, 0x12345678)
		got := word.FromBytesBE(w.ToBytesBE())
		assert.True(t, w.Eq(got), "bits=%d", bits)
	}
}

func TestAddSubInverse(t *testing.T) {
	a := word.New(16, 1000)
	b := word.New(16, 234)
	sum, _ := a.Add(b)
	back, _ := sum.Sub(b)
	assert.True(t, a.Eq(back))
}

func TestAddOverflow(t *testing.T) {
	max := word.FromSigned(8, 127)
	one := word.FromSigned(8, 1)
	sum, overflow := max.Add(one)
	assert.True(t, overflow)
	assert.Equal(t, int64(-128), sum.Signed())
}

func TestSubOverflow(t *testing.T) {
	min := word.FromSigned(8, -128)
	one := word.FromSigned(8, 1)
	diff, overflow := min.Sub(one)
	assert.True(t, overflow)
	assert.Equal(t, int64(127), diff.Signed())
}

func TestUMulOverflow(t *testing.T) {
	a := word.New(8, 200)
	b := word.New(8, 200)
	_, overflow := a.UMul(b)
	assert.True(t, overflow)
}

func TestUMulNoOverflow(t *testing.T) {
	a := word.New(8, 10)
	b := word.New(8, 10)
	product, overflow := a.UMul(b)
	assert.False(t, overflow)
	assert.Equal(t, uint64(100), product.Unsigned())
}

func TestSDivModProperties(t *testing.T) {
	cases := []struct{ a, b int64 }{
		{17, 5}, {-17, 5}, {17, -5}, {-17, -5}, {0, 7},
	}
	for _, c := range cases {
		a := word.FromSigned(16, c.a)
		b := word.FromSigned(16, c.b)
		q, r, err := a.SDivMod(b)
		require.NoError(t, err)
		assert.Equal(t, c.a, q.Signed()*c.b+r.Signed(), "a=%d b=%d", c.a, c.b)
		if r.Signed() != 0 {
			assert.Equal(t, c.a < 0, r.Signed() < 0)
		}
	}
}

func TestSDivModByZero(t *testing.T) {
	a := word.New(8, 5)
	z := word.New(8, 0)
	_, _, err := a.SDivMod(z)
	assert.ErrorIs(t, err, word.ErrDivisionByZero)
}

func TestSDivModSignedOverflow(t *testing.T) {
	minVal := word.FromSigned(8, -128)
	negOne := word.FromSigned(8, -1)
	_, _, err := minVal.SDivMod(negOne)
	assert.ErrorIs(t, err, word.ErrSignedOverflow)
}

func TestUDivModProperties(t *testing.T) {
	a := word.New(16, 17)
	b := word.New(16, 5)
	q, r, err := a.UDivMod(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), q.Unsigned())
	assert.Equal(t, uint64(2), r.Unsigned())
}

func TestCmpSigned(t *testing.T) {
	neg := word.FromSigned(8, -5)
	pos := word.FromSigned(8, 5)
	assert.Equal(t, -1, neg.CmpSigned(pos))
	assert.Equal(t, 1, pos.CmpSigned(neg))
	assert.Equal(t, 1, neg.CmpUnsigned(pos))
}

func TestNeg(t *testing.T) {
	w := word.FromSigned(8, 5)
	assert.Equal(t, int64(-5), w.Neg().Signed())
}

func TestMaxWidthSigned(t *testing.T) {
	w := word.FromSigned(word.MaxBits, -1)
	assert.Equal(t, int64(-1), w.Signed())
	assert.True(t, w.IsNegative())
}
