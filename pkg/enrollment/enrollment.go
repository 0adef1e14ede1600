// Package enrollment holds the fuzzy-commitment records produced at
// enrollment and their storage and wire encodings. Nothing in it can be used
// to reconstruct face geometry.
package enrollment

import (
	"bytes"
	"fmt"
	"time"

	"github.com/byosync/facecommit/pkg/codeword"
	"github.com/byosync/facecommit/pkg/failure"
)

const (
	SaltSize  = 16
	K2Size    = 16
	TokenSize = 32
)

// Record is one committed frame.
type Record struct {
	Index int
	// Helper is the codeword XOR the quantized feature bits.
	Helper codeword.Bits
	// SecretHash is SHA-256 of the committed secret. Records rebuilt from a
	// wire request do not carry it.
	SecretHash []byte
	Salt       []byte
	K2         []byte
	Token      []byte
	IOD        float64
	Timestamp  time.Time
}

// Store is the immutable result of one enrollment.
type Store struct {
	SavedAt time.Time
	Records []Record
}

// Identity keys a store in a repository.
type Identity struct {
	UserID   string
	DeviceID string
}

func (id Identity) String() string {
	if id.DeviceID == "" {
		return id.UserID
	}
	return id.UserID + "/" + id.DeviceID
}

func (id Identity) Valid() bool {
	return id.UserID != ""
}

// Salt returns the salt shared by all records, or nil for an empty store.
func (s *Store) Salt() []byte {
	if s == nil || len(s.Records) == 0 {
		return nil
	}
	return s.Records[0].Salt
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Validate checks the structural invariants of a store. An empty store is
// failure.ErrNoEnrollment; any other violation is failure.ErrEncodingFailure.
func (s *Store) Validate() error {
	if s.Len() == 0 {
		return failure.ErrNoEnrollment
	}

	salt := s.Salt()
	if len(salt) == 0 {
		return failure.WithMessage(failure.ErrEncodingFailure, "store has no salt")
	}

	for i, r := range s.Records {
		switch {
		case !bytes.Equal(r.Salt, salt):
			return failure.WithMessage(failure.ErrEncodingFailure, fmt.Sprintf("record %d has a different salt", i))
		case len(r.Helper) != codeword.Length:
			return failure.WithMessage(failure.ErrEncodingFailure, fmt.Sprintf("record %d helper has %d bits", i, len(r.Helper)))
		case len(r.Token) != TokenSize:
			return failure.WithMessage(failure.ErrEncodingFailure, fmt.Sprintf("record %d token has %d bytes", i, len(r.Token)))
		case len(r.K2) == 0:
			return failure.WithMessage(failure.ErrEncodingFailure, fmt.Sprintf("record %d has no k2", i))
		}
	}

	return nil
}
