package codeword

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBits(r *rand.Rand, n int) Bits {
	b := make(Bits, n)
	for i := range b {
		b[i] = byte(r.Intn(2))
	}
	return b
}

func TestEncodeDecode(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	msg := randomBits(r, SecretBits)

	c, err := Encode(msg)
	require.NoError(t, err)
	require.Len(t, c, Length)
	for p := range c {
		assert.Equal(t, msg[p%SecretBits], c[p])
	}

	got, err := Decode(c)
	require.NoError(t, err)
	assert.True(t, got.Equal(msg))
}

func TestDecodeCorrectsTwoFlipsPerBit(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	msg := randomBits(r, SecretBits)
	c, err := Encode(msg)
	require.NoError(t, err)

	noisy := append(Bits{}, c...)
	for i := 0; i < SecretBits; i++ {
		noisy[i] ^= 1
		noisy[i+3*SecretBits] ^= 1
	}
	assert.Equal(t, 2*SecretBits, noisy.Distance(c))

	got, err := Decode(noisy)
	require.NoError(t, err)
	assert.True(t, got.Equal(msg))
}

func TestDecodeThreeFlipsChangesBit(t *testing.T) {
	msg := make(Bits, SecretBits)
	c, err := Encode(msg)
	require.NoError(t, err)

	c[5] = 1
	c[5+SecretBits] = 1
	c[5+2*SecretBits] = 1

	got, err := Decode(c)
	require.NoError(t, err)
	assert.Equal(t, byte(1), got[5])
	assert.Equal(t, 1, got.Distance(msg))
}

func TestLengthErrors(t *testing.T) {
	_, err := Encode(make(Bits, SecretBits-1))
	assert.ErrorIs(t, err, ErrLength)

	_, err = Decode(make(Bits, Length+1))
	assert.ErrorIs(t, err, ErrLength)

	_, err = Bits{1, 0}.Xor(Bits{1})
	assert.ErrorIs(t, err, ErrLength)

	_, err = FromBytes([]byte{0xff}, 9)
	assert.ErrorIs(t, err, ErrLength)
}

func TestXorIsItsOwnInverse(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	a := randomBits(r, Length)
	b := randomBits(r, Length)

	helper, err := a.Xor(b)
	require.NoError(t, err)
	back, err := helper.Xor(b)
	require.NoError(t, err)
	assert.True(t, back.Equal(a))
}

func TestStringParsePack(t *testing.T) {
	b := Bits{1, 0, 1, 1, 0, 0, 0, 0, 1}
	assert.Equal(t, "101100001", b.String())

	parsed, err := Parse("101100001")
	require.NoError(t, err)
	assert.Equal(t, b, parsed)

	_, err = Parse("10a")
	assert.Error(t, err)

	assert.Equal(t, []byte{0xb0, 0x80}, b.Pack())

	unpacked, err := FromBytes(b.Pack(), len(b))
	require.NoError(t, err)
	assert.Equal(t, b, unpacked)
}
