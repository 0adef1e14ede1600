// Package pipeline runs the per-frame chain of one capture session:
// normalize, gate, extract, aggregate, and at the end of the session either
// commit an enrollment or verify against one.
//
// ProcessFrame, Commit, CommitAsync, Verify and Reset must be called from a
// single goroutine. Observers receive events through Events.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/byosync/facecommit/pkg/aggregator"
	"github.com/byosync/facecommit/pkg/commitment"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/matcher"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/quality"
	"github.com/byosync/facecommit/pkg/upload"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

type Config struct {
	Quality  quality.Config
	Phase    quality.PhaseConfig
	Capacity int
	// EnrollBatch is the number of most recent frames committed at the end
	// of enrollment.
	EnrollBatch int
	// MinEnrollFrames is the smallest batch Commit accepts when the movement
	// phase ended on its deadline before filling EnrollBatch.
	MinEnrollFrames int
	Matcher         matcher.Config
	Screen          quality.Screen
}

func DefaultConfig() Config {
	return Config{
		Quality:         quality.DefaultConfig(),
		Phase:           quality.DefaultPhaseConfig(),
		Capacity:        aggregator.DefaultCapacity,
		EnrollBatch:     aggregator.DefaultCapacity,
		MinEnrollFrames: quality.DefaultPhaseConfig().CenterQuota,
		Matcher:         matcher.DefaultConfig(),
		Screen:          quality.Screen{Width: 390, Height: 844},
	}
}

// Outcome is the result of processing one frame.
type Outcome struct {
	Seq      uint64
	State    quality.State
	Accepted bool
	Appended bool
	Phase    mo.Option[quality.Phase]
	Vector   mo.Option[feature.Vector]
	// Err is the frame-level failure, if any. It never ends the session.
	Err error
}

type Pipeline struct {
	session Session
	cfg     Config
	screen  quality.Screen

	gate     *quality.Gate
	machine  *quality.Machine
	agg      *aggregator.Aggregator
	encoder  *commitment.Encoder
	matcher  *matcher.Matcher
	events   *Broadcaster
	uploads  *upload.Limiter
	frameSeq uint64

	logger *slog.Logger
	clock  func() time.Time
}

func New(session Session, ref *commitment.Reference, cfg Config, opts ...options.Option) *Pipeline {
	oo := options.NewOptions(opts...)

	return &Pipeline{
		session: session,
		cfg:     cfg,
		screen:  cfg.Screen,
		gate:    quality.NewGate(cfg.Quality),
		machine: quality.NewMachine(cfg.Phase),
		agg:     aggregator.New(cfg.Capacity),
		encoder: commitment.NewEncoder(ref, opts...),
		matcher: matcher.New(ref, cfg.Matcher, opts...),
		events:  NewBroadcaster(),
		logger:  oo.Logger,
		clock:   oo.Clock,
	}
}

// WithUploads sends every frame that carries an image to l.
func (p *Pipeline) WithUploads(l *upload.Limiter) *Pipeline {
	p.uploads = l
	return p
}

func (p *Pipeline) Session() Session {
	return p.session
}

func (p *Pipeline) Events() *Broadcaster {
	return p.events
}

// SetScreen updates the preview size used for oval alignment.
func (p *Pipeline) SetScreen(screen quality.Screen) {
	p.screen = screen
}

// Phase returns the registration phase; absent in verification sessions.
func (p *Pipeline) Phase() mo.Option[quality.Phase] {
	if p.session.Mode != ModeEnrollment {
		return mo.None[quality.Phase]()
	}
	return mo.Some(p.machine.Phase())
}

func (p *Pipeline) Buffered() int {
	return p.agg.Len()
}

// ProcessFrame runs one detector frame through the chain. Invalid frames
// report the no-face state and leave the aggregator untouched.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame landmark.Frame) (out Outcome) {
	p.frameSeq++
	out = Outcome{
		Seq:    p.frameSeq,
		State:  quality.NoFaceState(),
		Vector: mo.None[feature.Vector](),
	}

	if err := ctx.Err(); err != nil {
		out.Err = err
		out.Phase = p.Phase()
		return out
	}

	now := frame.Timestamp
	if now.IsZero() {
		now = p.clock()
	}

	if p.session.Mode == ModeEnrollment {
		if phase, advanced := p.machine.Tick(now); advanced {
			p.logPhase(phase)
		}
	}

	defer func() {
		out.Phase = p.Phase()
		p.submitUpload(ctx, frame, out)
		p.events.Publish(Event{
			SessionID: p.session.ID,
			Seq:       out.Seq,
			State:     out.State,
			Phase:     out.Phase,
			Accepted:  out.Accepted,
			Appended:  out.Appended,
			Buffered:  p.agg.Len(),
		})
	}()

	m, err := landmark.Normalize(frame, landmark.Cardinality).Get()
	if err != nil {
		out.Err = err
		p.logger.Debug("frame rejected", "seq", out.Seq, "err", err)
		return out
	}

	out.State = p.gate.Evaluate(m, frame.PoseStable, p.screen)
	out.Accepted = out.State.Acceptable()

	v, err := feature.Extract(m.Set).Get()
	if err != nil {
		out.Err = err
		p.logger.Debug("feature extraction failed", "seq", out.Seq, "err", err)
		return out
	}
	out.Vector = mo.Some(v)

	if !out.Accepted {
		p.logger.Debug("frame not accepted",
			"seq", out.Seq,
			"distance", out.State.Distance,
			"oval", out.State.OvalAligned,
			"pose", out.State.PoseStable,
		)
		return out
	}

	tag, ok := p.tag(now)
	if !ok {
		return out
	}

	p.agg.Append(aggregator.Frame{
		Tag:        tag,
		Vector:     v,
		IOD:        m.IOD.Normalized,
		CapturedAt: now,
	})
	out.Appended = true

	return out
}

// tag counts an accepted frame and returns the aggregator tag it is stored
// under. Frames arriving after enrollment is done are not stored.
func (p *Pipeline) tag(now time.Time) (aggregator.Tag, bool) {
	if p.session.Mode == ModeVerification {
		return aggregator.TagVerification, true
	}

	phase, advanced := p.machine.Accept(now)
	if advanced {
		p.logPhase(p.machine.Phase())
	}

	switch phase.Kind {
	case quality.CenterCollecting:
		return aggregator.TagCenter, true
	case quality.MovementCollecting:
		return aggregator.TagMovement, true
	default:
		return 0, false
	}
}

func (p *Pipeline) logPhase(phase quality.Phase) {
	center, movement := p.machine.Counts()
	p.logger.Info("registration phase advanced",
		"session", p.session.ID,
		"phase", phase,
		"center", center,
		"movement", movement,
	)
}

func (p *Pipeline) submitUpload(ctx context.Context, frame landmark.Frame, out Outcome) {
	if p.uploads == nil || len(frame.Image) == 0 {
		return
	}
	p.uploads.Submit(ctx, upload.Item{
		SessionID:  p.session.ID,
		FrameIndex: out.Seq,
		Image:      frame.Image,
		Accepted:   out.Accepted,
	})
}

// Tick advances the registration phase on a timer, without a frame.
func (p *Pipeline) Tick(now time.Time) mo.Option[quality.Phase] {
	if p.session.Mode == ModeEnrollment {
		if phase, advanced := p.machine.Tick(now); advanced {
			p.logPhase(phase)
		}
	}
	return p.Phase()
}

// Ready reports whether the session has collected what it needs: a finished
// registration for enrollment, a full sample for verification.
func (p *Pipeline) Ready() bool {
	switch p.session.Mode {
	case ModeEnrollment:
		return p.machine.Phase().Kind == quality.Done
	case ModeVerification:
		return p.agg.Len() >= p.matcher.Config().SampleSize
	default:
		return false
	}
}

func (p *Pipeline) Matcher() *matcher.Matcher {
	return p.matcher
}

func (p *Pipeline) commitInputs() ([]commitment.Input, error) {
	if p.session.Mode != ModeEnrollment || !p.Ready() {
		return nil, failure.WithMessage(failure.ErrNotReady, "enrollment is not done")
	}

	n := min(p.cfg.EnrollBatch, p.agg.Len())
	if n < p.cfg.MinEnrollFrames {
		return nil, failure.NewInsufficientFrames(n, p.cfg.MinEnrollFrames)
	}

	frames, err := p.agg.SelectLast(n)
	if err != nil {
		return nil, err
	}

	return lo.Map(frames, func(f aggregator.Frame, _ int) commitment.Input {
		return commitment.Input{Vector: f.Vector, IOD: f.IOD, CapturedAt: f.CapturedAt}
	}), nil
}

// Commit encodes the enrollment batch. It fails with failure.ErrNotReady
// before the registration phase is done.
func (p *Pipeline) Commit() (*enrollment.Store, error) {
	inputs, err := p.commitInputs()
	if err != nil {
		return nil, err
	}

	store, err := p.encoder.Encode(inputs)
	if err != nil {
		p.logger.Error("enrollment commit failed", "session", p.session.ID, "err", err)
		return nil, err
	}

	p.logger.Info("enrollment committed", "session", p.session.ID, "records", store.Len())
	return store, nil
}

// CommitAsync selects the batch on the calling goroutine and encodes it on a
// background one.
func (p *Pipeline) CommitAsync(ctx context.Context) <-chan mo.Result[*enrollment.Store] {
	inputs, err := p.commitInputs()
	if err != nil {
		out := make(chan mo.Result[*enrollment.Store], 1)
		out <- mo.Err[*enrollment.Store](err)
		close(out)
		return out
	}

	return p.encoder.EncodeAsync(ctx, inputs)
}

// Verify matches the most recent verification frames against store.
func (p *Pipeline) Verify(ctx context.Context, store *enrollment.Store) (matcher.Decision, error) {
	if err := ctx.Err(); err != nil {
		return matcher.Decision{}, err
	}
	if p.session.Mode != ModeVerification {
		return matcher.Decision{}, failure.WithMessage(failure.ErrNotReady, "not a verification session")
	}
	if store.Len() == 0 {
		return matcher.Decision{}, failure.ErrNoEnrollment
	}

	sample, err := p.Sample()
	if err != nil {
		return matcher.Decision{}, err
	}

	d, err := p.matcher.Verify(sample, store)
	if err != nil {
		return matcher.Decision{}, err
	}

	p.logger.Info("verification decided",
		"session", p.session.ID,
		"matched", d.Matched,
		"required", d.Required,
		"accepted", d.Accepted,
	)
	return d, nil
}

// Sample returns the most recent verification vectors, as many as the
// matcher samples.
func (p *Pipeline) Sample() ([]feature.Vector, error) {
	frames, err := p.agg.SelectLastTagged(aggregator.TagVerification, p.matcher.Config().SampleSize)
	if err != nil {
		return nil, err
	}

	return lo.Map(frames, func(f aggregator.Frame, _ int) feature.Vector {
		return f.Vector
	}), nil
}

// Reset abandons the current session and starts next. Buffered frames and
// phase progress are discarded; nothing is committed.
func (p *Pipeline) Reset(next Session) {
	p.logger.Debug("session reset", "from", p.session.ID, "to", next.ID)

	p.session = next
	p.agg.Reset()
	p.machine = quality.NewMachine(p.cfg.Phase)
	p.frameSeq = 0
}
