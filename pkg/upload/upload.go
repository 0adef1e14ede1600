// Package upload ships debug frame images to an external collaborator with
// bounded concurrency. Upload failures are recorded per frame and never
// reach the biometric pipeline.
package upload

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/byosync/facecommit/pkg/options"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const DefaultPermits = 3

type Item struct {
	SessionID  uuid.UUID
	FrameIndex uint64
	Image      []byte
	Accepted   bool
}

type Uploader interface {
	Upload(ctx context.Context, item Item) error
}

type UploaderFunc func(ctx context.Context, item Item) error

func (f UploaderFunc) Upload(ctx context.Context, item Item) error {
	return f(ctx, item)
}

// FrameKey identifies a frame across sessions sharing one limiter.
type FrameKey struct {
	SessionID  uuid.UUID
	FrameIndex uint64
}

// Limiter runs uploads in the background, at most permits at a time.
// Cancelling the context given with options.WithContext stops every pending
// upload.
type Limiter struct {
	uploader Uploader
	sem      *semaphore.Weighted
	ctx      context.Context
	logger   *slog.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	failures map[FrameKey]error
}

func NewLimiter(uploader Uploader, permits int64, opts ...options.Option) *Limiter {
	oo := options.NewOptions(opts...)
	if permits <= 0 {
		permits = DefaultPermits
	}

	return &Limiter{
		uploader: uploader,
		sem:      semaphore.NewWeighted(permits),
		ctx:      oo.Context,
		logger:   oo.Logger,
		failures: make(map[FrameKey]error),
	}
}

// Submit schedules an upload and returns immediately. The image is copied.
func (l *Limiter) Submit(ctx context.Context, item Item) {
	item.Image = append([]byte(nil), item.Image...)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(l.ctx, cancel)
		defer stop()

		if err := l.sem.Acquire(ctx, 1); err != nil {
			l.fail(item, err)
			return
		}
		defer l.sem.Release(1)

		if err := l.uploader.Upload(ctx, item); err != nil {
			l.fail(item, err)
		}
	}()
}

func (l *Limiter) fail(item Item, err error) {
	l.logger.Warn("debug frame upload failed",
		"session", item.SessionID,
		"frame", item.FrameIndex,
		"err", err,
	)

	l.mu.Lock()
	l.failures[FrameKey{SessionID: item.SessionID, FrameIndex: item.FrameIndex}] = err
	l.mu.Unlock()
}

// Wait blocks until every submitted upload has finished.
func (l *Limiter) Wait() {
	l.wg.Wait()
}

// Failures returns the errors recorded so far keyed by session and frame.
func (l *Limiter) Failures() map[FrameKey]error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.failures)
}
