package sugar

import (
	"context"
	"errors"
	"iter"
	"math/rand"
	"testing"
	"time"

	"github.com/byosync/facecommit/pkg/commitment"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/landmark/landmarktest"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	epoch = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	alice = enrollment.Identity{UserID: "alice", DeviceID: "phone"}
	bob   = enrollment.Identity{UserID: "bob", DeviceID: "phone"}
)

func reference(t *testing.T) *commitment.Reference {
	t.Helper()

	var population []feature.Vector
	for seed := 0; seed < 25; seed++ {
		face := landmarktest.Face{CenterX: 0.5, CenterY: 0.5, Size: 1, Seed: seed}
		m, err := landmark.Normalize(face.Frame(720, 1280), landmark.Cardinality).Get()
		require.NoError(t, err)
		population = append(population, feature.Extract(m.Set).MustGet())
	}

	ref, err := commitment.BuildReference(population)
	require.NoError(t, err)
	return ref
}

// stream yields n frames of the face with the given seed, 33 ms apart.
func stream(seed, n int) iter.Seq2[landmark.Frame, error] {
	return func(yield func(landmark.Frame, error) bool) {
		for i := 0; i < n; i++ {
			f := landmarktest.Face{CenterX: 0.5, CenterY: 0.5, Size: 1, Seed: seed}.Frame(720, 1280)
			f.Timestamp = epoch.Add(time.Duration(i) * 33 * time.Millisecond)
			if !yield(f, nil) {
				return
			}
		}
	}
}

func newPipeline(ref *commitment.Reference, mode pipeline.Mode, id enrollment.Identity) *pipeline.Pipeline {
	return pipeline.New(pipeline.NewSession(mode, id, epoch), ref, pipeline.DefaultConfig(),
		options.WithRand(rand.New(rand.NewSource(int64(len(id.UserID))))),
	)
}

func enroll(t *testing.T, ref *commitment.Reference, id enrollment.Identity, seed int) *enrollment.Store {
	t.Helper()

	store, err := Enroll(context.Background(), newPipeline(ref, pipeline.ModeEnrollment, id), stream(seed, 200))
	require.NoError(t, err)
	return store
}

func TestReplayStopsWhenReady(t *testing.T) {
	p := newPipeline(reference(t), pipeline.ModeVerification, alice)

	n, err := Replay(context.Background(), p, stream(7, 50))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.True(t, p.Ready())
}

func TestReplayStopsOnStreamError(t *testing.T) {
	boom := errors.New("truncated")
	frames := func(yield func(landmark.Frame, error) bool) {
		for f := range stream(7, 3) {
			if !yield(f, nil) {
				return
			}
		}
		yield(landmark.Frame{}, boom)
	}

	n, err := Replay(context.Background(), newPipeline(reference(t), pipeline.ModeVerification, alice), frames)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)
}

func TestEnrollAndVerify(t *testing.T) {
	ctx := context.Background()
	ref := reference(t)

	store := enroll(t, ref, alice, 7)
	assert.Len(t, store.Records, 80)

	d, err := Verify(ctx, newPipeline(ref, pipeline.ModeVerification, alice), stream(7, 30), store)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 10, d.Sampled)
}

func TestEnrollShortStreamIsNotReady(t *testing.T) {
	_, err := Enroll(context.Background(), newPipeline(reference(t), pipeline.ModeEnrollment, alice), stream(7, 20))
	assert.ErrorIs(t, err, failure.ErrNotReady)
}

func TestIdentify(t *testing.T) {
	ctx := context.Background()
	ref := reference(t)

	candidates := map[enrollment.Identity]*enrollment.Store{
		alice: enroll(t, ref, alice, 7),
		bob:   enroll(t, ref, bob, 40),
	}
	candidates[enrollment.Identity{UserID: "carol"}] = &enrollment.Store{}
	candidates[enrollment.Identity{UserID: "dave"}] = &enrollment.Store{Records: []enrollment.Record{{}}}

	p := newPipeline(ref, pipeline.ModeVerification, enrollment.Identity{})
	_, err := Replay(ctx, p, stream(40, 10))
	require.NoError(t, err)

	match, err := Identify(ctx, p, candidates)
	require.NoError(t, err)
	require.True(t, match.IsPresent())
	assert.Equal(t, bob, match.MustGet().Identity)
	assert.True(t, match.MustGet().Decision.Accepted)

	stranger := newPipeline(ref, pipeline.ModeVerification, enrollment.Identity{})
	_, err = Replay(ctx, stranger, stream(90, 10))
	require.NoError(t, err)

	match, err = Identify(ctx, stranger, candidates)
	require.NoError(t, err)
	assert.True(t, match.IsAbsent())
}

func TestIdentifyErrors(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(reference(t), pipeline.ModeVerification, alice)

	_, err := Identify(ctx, p, nil)
	assert.ErrorIs(t, err, failure.ErrNoEnrollment)

	_, err = Identify(ctx, p, map[enrollment.Identity]*enrollment.Store{alice: {}})
	assert.ErrorIs(t, err, failure.ErrInsufficientFrames)
}

func TestIdentifyPicksDeterministicWinner(t *testing.T) {
	ctx := context.Background()
	ref := reference(t)

	aaron := enrollment.Identity{UserID: "aaron", DeviceID: "phone"}
	candidates := map[enrollment.Identity]*enrollment.Store{
		alice: enroll(t, ref, alice, 7),
		aaron: enroll(t, ref, aaron, 7),
		bob:   enroll(t, ref, bob, 40),
	}

	for i := 0; i < 20; i++ {
		p := newPipeline(ref, pipeline.ModeVerification, enrollment.Identity{})
		_, err := Replay(ctx, p, stream(7, 10))
		require.NoError(t, err)

		match, err := Identify(ctx, p, candidates)
		require.NoError(t, err)
		require.True(t, match.IsPresent())
		assert.Equal(t, aaron, match.MustGet().Identity, "equal scores go to the smallest identity")
	}
}

func TestIdentifyHonoursCancelledContext(t *testing.T) {
	ref := reference(t)
	p := newPipeline(ref, pipeline.ModeVerification, enrollment.Identity{})
	_, err := Replay(context.Background(), p, stream(7, 10))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	match, err := Identify(ctx, p, map[enrollment.Identity]*enrollment.Store{alice: enroll(t, ref, alice, 7)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, match.IsAbsent())
}
