package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKey      = errors.New("crypto: seal key must be 32 bytes")
	ErrMalformedSealed = errors.New("crypto: malformed sealed payload")
)

// Hash returns SHA-256 over the concatenation of parts.
func Hash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// Equal compares two digests in constant time.
func Equal(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}

// Derive expands ikm into n bytes with HKDF-SHA256.
func Derive(ikm, salt []byte, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(
		hkdf.New(sha256.New, ikm, salt, []byte(info)),
		out,
	); err != nil {
		return nil, fmt.Errorf("deriving %q using HKDF failed: %w", info, err)
	}

	return out, nil
}

// RandomBytes reads n bytes from r.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("cannot read %d random bytes: %w", n, err)
	}
	return b, nil
}

// Sealed is a compressed, AES-256-GCM encrypted payload.
type Sealed struct {
	Ciphertext []byte `cbor:"1,keyasint"`
	Nonce      []byte `cbor:"2,keyasint"`
	OrigSize   uint   `cbor:"3,keyasint"`
}

// Seal deflates data and encrypts it under a 32-byte key. The original size is
// bound into the associated data.
func Seal(key []byte, data []byte, rand io.Reader) (*Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := compress(data)
	if err != nil {
		return nil, fmt.Errorf("cannot compress payload: %w", err)
	}

	nonce, err := RandomBytes(rand, gcm.NonceSize())
	if err != nil {
		return nil, err
	}

	origSize := len(data)
	return &Sealed{
		Ciphertext: gcm.Seal(nil, nonce, plaintext, associatedData(uint(origSize))),
		Nonce:      nonce,
		OrigSize:   uint(origSize),
	}, nil
}

func Open(key []byte, sealed *Sealed) ([]byte, error) {
	if sealed == nil {
		return nil, ErrMalformedSealed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed.Nonce) != gcm.NonceSize() {
		return nil, ErrMalformedSealed
	}

	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, associatedData(sealed.OrigSize))
	if err != nil {
		return nil, err
	}

	data, err := decompress(plaintext)
	if err != nil {
		return nil, err
	}
	if uint(len(data)) != sealed.OrigSize {
		return nil, fmt.Errorf("sealed payload is %d bytes, expected %d", len(data), sealed.OrigSize)
	}

	return data, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

func associatedData(origSize uint) []byte {
	origSizeBin := make([]byte, 8)
	binary.LittleEndian.PutUint64(origSizeBin, uint64(origSize))
	return slices.Concat([]byte("facecommit-store"), origSizeBin)
}
