package enrollment

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/byosync/facecommit/pkg/codeword"
	"github.com/samber/lo"
)

// Request is the enrollment payload handed to the transport collaborator.
// It carries neither secret hashes nor timestamps.
type Request struct {
	UserID string   `json:"userId"`
	Salt   string   `json:"salt"`
	FaceID []FaceID `json:"faceId"`
}

type FaceID struct {
	Helper string  `json:"helper"`
	K2     string  `json:"k2"`
	Token  string  `json:"token"`
	IOD    float64 `json:"iod"`
}

// Request builds the wire payload for a valid store.
func (s *Store) Request(userID string) (Request, error) {
	if err := s.Validate(); err != nil {
		return Request{}, err
	}

	return Request{
		UserID: userID,
		Salt:   hex.EncodeToString(s.Salt()),
		FaceID: lo.Map(s.Records, func(r Record, _ int) FaceID {
			return FaceID{
				Helper: r.Helper.String(),
				K2:     hex.EncodeToString(r.K2),
				Token:  hex.EncodeToString(r.Token),
				IOD:    r.IOD,
			}
		}),
	}, nil
}

// FromRequest rebuilds a store from a wire payload. The records are
// token-only: they have no secret hash and carry savedAt as their timestamp.
func FromRequest(req Request, savedAt time.Time) (*Store, error) {
	salt, err := hex.DecodeString(req.Salt)
	if err != nil {
		return nil, fmt.Errorf("cannot decode salt: %w", err)
	}

	records := make([]Record, len(req.FaceID))
	for i, f := range req.FaceID {
		helper, err := codeword.Parse(f.Helper)
		if err != nil {
			return nil, fmt.Errorf("faceId %d: %w", i, err)
		}
		k2, err := hex.DecodeString(f.K2)
		if err != nil {
			return nil, fmt.Errorf("faceId %d: cannot decode k2: %w", i, err)
		}
		token, err := hex.DecodeString(f.Token)
		if err != nil {
			return nil, fmt.Errorf("faceId %d: cannot decode token: %w", i, err)
		}

		records[i] = Record{
			Index:     i,
			Helper:    helper,
			Salt:      salt,
			K2:        k2,
			Token:     token,
			IOD:       f.IOD,
			Timestamp: savedAt,
		}
	}

	store := &Store{SavedAt: savedAt, Records: records}
	if err := store.Validate(); err != nil {
		return nil, err
	}

	return store, nil
}
