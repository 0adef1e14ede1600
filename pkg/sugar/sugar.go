// Package sugar drives a pipeline over recorded frame streams.
package sugar

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/matcher"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Replay feeds frames into p until the session is ready or the stream ends.
// It returns the number of frames consumed.
func Replay(ctx context.Context, p *pipeline.Pipeline, frames iter.Seq2[landmark.Frame, error]) (int, error) {
	n := 0
	for frame, err := range frames {
		if err != nil {
			return n, err
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		n++
		p.ProcessFrame(ctx, frame)
		if p.Ready() {
			break
		}
	}

	return n, nil
}

// Enroll replays frames through an enrollment pipeline and commits.
func Enroll(ctx context.Context, p *pipeline.Pipeline, frames iter.Seq2[landmark.Frame, error]) (*enrollment.Store, error) {
	if _, err := Replay(ctx, p, frames); err != nil {
		return nil, err
	}

	return p.Commit()
}

// Verify replays frames through a verification pipeline and matches the
// sample against store.
func Verify(ctx context.Context, p *pipeline.Pipeline, frames iter.Seq2[landmark.Frame, error], store *enrollment.Store) (matcher.Decision, error) {
	if _, err := Replay(ctx, p, frames); err != nil {
		return matcher.Decision{}, err
	}

	return p.Verify(ctx, store)
}

type Match struct {
	Identity enrollment.Identity
	Decision matcher.Decision
}

// Identify matches the pipeline's verification sample against every
// candidate concurrently. When several accept, the one with the most matched
// frames wins, ties going to the smallest identity string, so the result does
// not depend on scheduling. The result is absent when none accepts. The first
// hard error cancels the remaining checks.
func Identify(ctx context.Context, p *pipeline.Pipeline, candidates map[enrollment.Identity]*enrollment.Store) (mo.Option[Match], error) {
	if len(candidates) == 0 {
		return mo.None[Match](), failure.ErrNoEnrollment
	}

	sample, err := p.Sample()
	if err != nil {
		return mo.None[Match](), err
	}

	m := p.Matcher()

	// Every acceptance, or hard errors.
	results := make(chan mo.Either[Match, error], len(candidates))

	var wg sync.WaitGroup
	var once sync.Once

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, id := range lo.Keys(candidates) {
		store := candidates[id]

		wg.Add(1)
		go func() {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			d, err := m.Verify(sample, store)
			if err == nil {
				if d.Accepted {
					results <- mo.Left[Match, error](Match{Identity: id, Decision: d})
				}
				return
			}
			// Stores that are empty or malformed do not stop the search.
			if errors.Is(err, failure.ErrNoEnrollment) || errors.Is(err, failure.ErrEncodingFailure) {
				return
			}

			once.Do(func() {
				cancel()
				results <- mo.Right[Match, error](err)
			})
		}()
	}

	wg.Wait()
	close(results)

	var matches []Match
	for r := range results {
		if err, ok := r.Right(); ok {
			return mo.None[Match](), err
		}
		matches = append(matches, r.MustLeft())
	}

	if len(matches) == 0 {
		if err := ctx.Err(); err != nil {
			return mo.None[Match](), err
		}
		return mo.None[Match](), nil
	}

	return mo.Some(lo.MaxBy(matches, func(a, b Match) bool {
		if a.Decision.Matched != b.Decision.Matched {
			return a.Decision.Matched > b.Decision.Matched
		}
		return a.Identity.String() < b.Identity.String()
	})), nil
}
