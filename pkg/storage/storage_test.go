package storage

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/byosync/facecommit/pkg/commitment"
	"github.com/byosync/facecommit/pkg/crypto"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = enrollment.Identity{UserID: "alice", DeviceID: "phone-1"}
	sealKey = bytes.Repeat([]byte{0x42}, 32)
)

func sampleStore(t *testing.T) *enrollment.Store {
	t.Helper()

	thresholds := make([]float64, commitment.CodewordBits)
	for i := range thresholds {
		thresholds[i] = 1
	}
	ref, err := commitment.NewReference(thresholds)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(3))
	inputs := make([]commitment.Input, 4)
	for i := range inputs {
		v := make(feature.Vector, feature.Length)
		for j := range v {
			v[j] = r.Float64() * 2
		}
		inputs[i] = commitment.Input{Vector: v, IOD: 0.2, CapturedAt: time.UnixMilli(int64(1767322800000 + i))}
	}

	enc := commitment.NewEncoder(ref,
		options.WithRand(r),
		options.WithClock(func() time.Time { return time.UnixMilli(1767322809000) }),
	)
	store, err := enc.Encode(inputs)
	require.NoError(t, err)
	return store
}

func exercise(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Load(ctx, alice)
	require.ErrorIs(t, err, failure.ErrNoEnrollment)

	store := sampleStore(t)
	require.NoError(t, repo.Save(ctx, alice, store))

	loaded, err := repo.Load(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, store.SavedAt.UnixMilli(), loaded.SavedAt.UnixMilli())
	require.Len(t, loaded.Records, len(store.Records))
	for i := range store.Records {
		assert.Equal(t, store.Records[i].Helper, loaded.Records[i].Helper)
		assert.Equal(t, store.Records[i].Token, loaded.Records[i].Token)
		assert.Equal(t, store.Records[i].SecretHash, loaded.Records[i].SecretHash)
	}

	_, err = repo.Load(ctx, enrollment.Identity{UserID: "alice", DeviceID: "phone-2"})
	assert.ErrorIs(t, err, failure.ErrNoEnrollment)

	require.NoError(t, repo.Delete(ctx, alice))
	_, err = repo.Load(ctx, alice)
	assert.ErrorIs(t, err, failure.ErrNoEnrollment)

	assert.ErrorIs(t, repo.Save(ctx, alice, &enrollment.Store{}), failure.ErrNoEnrollment)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFile(t *testing.T) {
	repo, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exercise(t, repo)

	assert.ErrorIs(t, repo.Save(context.Background(), enrollment.Identity{}, sampleStore(t)), ErrInvalidIdentity)
}

type stubCache struct {
	values  map[string]string
	setErrs []error
	ttls    []time.Duration
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		return err
	}
	s.values[key] = string(value.([]byte))
	s.ttls = append(s.ttls, expiration)
	return nil
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *stubCache) Del(ctx context.Context, key string) error {
	delete(s.values, key)
	return nil
}

func TestRedis(t *testing.T) {
	codec, err := NewCodec(sealKey)
	require.NoError(t, err)

	cache := newStubCache()
	exercise(t, NewRedis(cache, codec, time.Hour))
	assert.Equal(t, []time.Duration{time.Hour}, cache.ttls)
}

func TestRedisKeyLayout(t *testing.T) {
	codec, err := NewCodec(nil)
	require.NoError(t, err)

	cache := newStubCache()
	repo := NewRedis(cache, codec, 0)
	require.NoError(t, repo.Save(context.Background(), alice, sampleStore(t)))

	assert.Contains(t, cache.values, "facecommit:enrollment:alice/phone-1")
}

func TestRedisWrapsBackendErrors(t *testing.T) {
	codec, err := NewCodec(nil)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	cache := newStubCache()
	cache.setErrs = []error{boom}

	err = NewRedis(cache, codec, 0).Save(context.Background(), alice, sampleStore(t))
	assert.ErrorIs(t, err, boom)
}

func TestCodecSealing(t *testing.T) {
	store := sampleStore(t)

	sealed, err := NewCodec(sealKey)
	require.NoError(t, err)
	plain, err := NewCodec(nil)
	require.NoError(t, err)

	payload, err := sealed.Encode(store)
	require.NoError(t, err)

	back, err := sealed.Decode(payload)
	require.NoError(t, err)
	assert.Len(t, back.Records, len(store.Records))

	_, err = plain.Decode(payload)
	assert.ErrorIs(t, err, failure.ErrEncodingFailure)

	other, err := NewCodec(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)
	_, err = other.Decode(payload)
	assert.ErrorIs(t, err, failure.ErrEncodingFailure)

	plainPayload, err := plain.Encode(store)
	require.NoError(t, err)
	back, err = sealed.Decode(plainPayload)
	require.NoError(t, err, "unsealed payloads stay readable after a key is configured")
	assert.Len(t, back.Records, len(store.Records))

	_, err = NewCodec([]byte("short"))
	assert.Error(t, err)
}

func TestCodecRejectsCorruptSealedEnvelope(t *testing.T) {
	codec, err := NewCodec(sealKey)
	require.NoError(t, err)

	payload, err := cbor.Marshal(envelope{Sealed: &crypto.Sealed{
		Ciphertext: []byte{1, 2, 3},
		Nonce:      []byte{1},
		OrigSize:   3,
	}})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, err = codec.Decode(payload)
	})
	assert.ErrorIs(t, err, failure.ErrEncodingFailure)
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("FACECOMMIT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FACECOMMIT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	codec, err := NewCodec(sealKey)
	require.NoError(t, err)

	repo, err := NewPostgres(ctx, url, codec)
	require.NoError(t, err)
	defer func() {
		_ = repo.Close(ctx)
	}()

	_ = repo.Delete(ctx, alice)
	exercise(t, repo)
}
