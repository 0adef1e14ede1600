// Package codeword implements the bit strings and the error-correcting code
// under the fuzzy commitment.
//
// The code is an interleaved repetition code: codeword bit p carries message
// bit p mod SecretBits, so every message bit appears Repetition times spread
// over the whole codeword and decoding is a per-bit majority vote. Up to
// (Repetition-1)/2 flipped copies of a message bit are corrected.
package codeword

import (
	"errors"
	"fmt"
	"strings"
)

const (
	SecretBits = 64
	Repetition = 5
	Length     = SecretBits * Repetition
)

var ErrLength = errors.New("codeword: unexpected bit string length")

// Bits is a bit string with one 0 or 1 per element.
type Bits []byte

// FromBytes takes the first n bits of b, most significant bit first.
func FromBytes(b []byte, n int) (Bits, error) {
	if n > len(b)*8 {
		return nil, fmt.Errorf("%w: want %d bits from %d bytes", ErrLength, n, len(b))
	}

	out := make(Bits, n)
	for i := range out {
		out[i] = (b[i/8] >> (7 - i%8)) & 1
	}
	return out, nil
}

// Parse reads a string of '0' and '1' characters.
func Parse(s string) (Bits, error) {
	out := make(Bits, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			out[i] = 1
		default:
			return nil, fmt.Errorf("codeword: invalid bit %q at %d", s[i], i)
		}
	}
	return out, nil
}

func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		if bit == 0 {
			sb.WriteByte('0')
		} else {
			sb.WriteByte('1')
		}
	}
	return sb.String()
}

// Pack returns the bits packed into bytes, most significant bit first. The
// last byte is zero-padded.
func (b Bits) Pack() []byte {
	out := make([]byte, (len(b)+7)/8)
	for i, bit := range b {
		out[i/8] |= (bit & 1) << (7 - i%8)
	}
	return out
}

func (b Bits) Xor(other Bits) (Bits, error) {
	if len(b) != len(other) {
		return nil, fmt.Errorf("%w: %d xor %d", ErrLength, len(b), len(other))
	}

	out := make(Bits, len(b))
	for i := range b {
		out[i] = (b[i] ^ other[i]) & 1
	}
	return out, nil
}

func (b Bits) Equal(other Bits) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i]&1 != other[i]&1 {
			return false
		}
	}
	return true
}

// Distance is the Hamming distance between equal-length strings, or -1.
func (b Bits) Distance(other Bits) int {
	if len(b) != len(other) {
		return -1
	}
	d := 0
	for i := range b {
		d += int((b[i] ^ other[i]) & 1)
	}
	return d
}

// Encode spreads a SecretBits message over a Length codeword.
func Encode(message Bits) (Bits, error) {
	if len(message) != SecretBits {
		return nil, fmt.Errorf("%w: message has %d bits", ErrLength, len(message))
	}

	out := make(Bits, Length)
	for p := range out {
		out[p] = message[p%SecretBits] & 1
	}
	return out, nil
}

// Decode recovers the message by majority vote over the copies of each bit.
// It never fails on a full-length input; too many flips decode to a different
// message.
func Decode(c Bits) (Bits, error) {
	if len(c) != Length {
		return nil, fmt.Errorf("%w: codeword has %d bits", ErrLength, len(c))
	}

	var ones [SecretBits]int
	for p, bit := range c {
		ones[p%SecretBits] += int(bit & 1)
	}

	out := make(Bits, SecretBits)
	for i, n := range ones {
		if 2*n > Repetition {
			out[i] = 1
		}
	}
	return out, nil
}
