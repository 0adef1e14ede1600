package enrollment

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/byosync/facecommit/pkg/codeword"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

type jsonRecord struct {
	Index      int     `json:"index"`
	Helper     string  `json:"helper"`
	SecretHash string  `json:"secretHash,omitempty"`
	Salt       string  `json:"salt"`
	K2         string  `json:"k2"`
	Token      string  `json:"token"`
	IOD        float64 `json:"iod"`
	Timestamp  int64   `json:"timestamp"`
}

type jsonStore struct {
	SavedAt int64        `json:"savedAt"`
	Records []jsonRecord `json:"records"`
}

func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonStore{
		SavedAt: s.SavedAt.UnixMilli(),
		Records: lo.Map(s.Records, func(r Record, _ int) jsonRecord {
			return jsonRecord{
				Index:      r.Index,
				Helper:     r.Helper.String(),
				SecretHash: hex.EncodeToString(r.SecretHash),
				Salt:       hex.EncodeToString(r.Salt),
				K2:         hex.EncodeToString(r.K2),
				Token:      hex.EncodeToString(r.Token),
				IOD:        r.IOD,
				Timestamp:  r.Timestamp.UnixMilli(),
			}
		}),
	})
}

func (s *Store) UnmarshalJSON(data []byte) error {
	var js jsonStore
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}

	records := make([]Record, len(js.Records))
	for i, jr := range js.Records {
		helper, err := codeword.Parse(jr.Helper)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}

		var fields [4][]byte
		for j, src := range []string{jr.SecretHash, jr.Salt, jr.K2, jr.Token} {
			if fields[j], err = decodeHex(src); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}

		records[i] = Record{
			Index:      jr.Index,
			Helper:     helper,
			SecretHash: fields[0],
			Salt:       fields[1],
			K2:         fields[2],
			Token:      fields[3],
			IOD:        jr.IOD,
			Timestamp:  time.UnixMilli(jr.Timestamp),
		}
	}

	*s = Store{SavedAt: time.UnixMilli(js.SavedAt), Records: records}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

type cborRecord struct {
	Index      int     `cbor:"1,keyasint"`
	Helper     []byte  `cbor:"2,keyasint"`
	HelperBits int     `cbor:"3,keyasint"`
	SecretHash []byte  `cbor:"4,keyasint,omitempty"`
	Salt       []byte  `cbor:"5,keyasint"`
	K2         []byte  `cbor:"6,keyasint"`
	Token      []byte  `cbor:"7,keyasint"`
	IOD        float64 `cbor:"8,keyasint"`
	Timestamp  int64   `cbor:"9,keyasint"`
}

type cborStore struct {
	SavedAt int64        `cbor:"1,keyasint"`
	Records []cborRecord `cbor:"2,keyasint"`
}

// EncodeCBOR serializes the store with packed helpers and unix millisecond
// timestamps.
func (s *Store) EncodeCBOR(encMode cbor.EncMode) ([]byte, error) {
	return encMode.Marshal(cborStore{
		SavedAt: s.SavedAt.UnixMilli(),
		Records: lo.Map(s.Records, func(r Record, _ int) cborRecord {
			return cborRecord{
				Index:      r.Index,
				Helper:     r.Helper.Pack(),
				HelperBits: len(r.Helper),
				SecretHash: r.SecretHash,
				Salt:       r.Salt,
				K2:         r.K2,
				Token:      r.Token,
				IOD:        r.IOD,
				Timestamp:  r.Timestamp.UnixMilli(),
			}
		}),
	})
}

func DecodeCBOR(data []byte) (*Store, error) {
	var cs cborStore
	if err := cbor.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("cannot decode enrollment store: %w", err)
	}

	records := make([]Record, len(cs.Records))
	for i, cr := range cs.Records {
		helper, err := codeword.FromBytes(cr.Helper, cr.HelperBits)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		records[i] = Record{
			Index:      cr.Index,
			Helper:     helper,
			SecretHash: cr.SecretHash,
			Salt:       cr.Salt,
			K2:         cr.K2,
			Token:      cr.Token,
			IOD:        cr.IOD,
			Timestamp:  time.UnixMilli(cr.Timestamp),
		}
	}

	return &Store{SavedAt: time.UnixMilli(cs.SavedAt), Records: records}, nil
}
