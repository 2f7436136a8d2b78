package fluxotrace

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/petrijr/fluxotrace/internal/engine"
)

// ErrReplayMismatch is returned by VerifyIncremental when feeding a history
// in two parts yields a different timeline than feeding it at once.
var ErrReplayMismatch = errors.New("incremental replay differs from batch build")

// Frame returns the timeline built from the first frame events. frame is
// clamped to [0, len(events)].
func Frame(events []RawEvent, frame int) *Timeline {
	b := engine.NewBuilder()
	b.AppendAll(events[:clampFrame(frame, len(events))])
	return b.Snapshot()
}

func clampFrame(frame, n int) int {
	return max(0, min(frame, n))
}

// Replayer steps through a fixed history one event at a time, the way a
// run viewer scrubs a recorded run.
//
// Moving forward reuses a single builder. Seeking backwards discards it and
// rebuilds from the start. A Replayer is not safe for concurrent use.
//
// Typical usage:
//
//	r := fluxotrace.NewReplayer(events)
//	for r.Next() {
//		render(r.Frame(), r.Timeline())
//	}
type Replayer struct {
	events   []RawEvent
	observer Observer

	builder *engine.Builder
	frame   int
}

// NewReplayer returns a Replayer positioned before the first event.
func NewReplayer(events []RawEvent) *Replayer {
	return NewReplayerWithObserver(events, nil)
}

// NewReplayerWithObserver returns a Replayer whose builders report to obs.
func NewReplayerWithObserver(events []RawEvent, obs Observer) *Replayer {
	r := &Replayer{
		events:   append([]RawEvent(nil), events...),
		observer: obs,
	}
	r.rewind()
	return r
}

func (r *Replayer) rewind() {
	r.builder = engine.NewBuilderWithConfig(engine.Config{Observer: r.observer})
	r.frame = 0
}

// Next applies the next event. It returns false once the history is
// exhausted.
func (r *Replayer) Next() bool {
	if r.frame >= len(r.events) {
		return false
	}
	r.builder.Append(r.events[r.frame])
	r.frame++
	return true
}

// Seek moves to the given frame, the number of events applied so far.
func (r *Replayer) Seek(frame int) {
	frame = clampFrame(frame, len(r.events))
	if frame < r.frame {
		r.rewind()
	}
	r.builder.AppendAll(r.events[r.frame:frame])
	r.frame = frame
}

// Frame returns how many events have been applied.
func (r *Replayer) Frame() int {
	return r.frame
}

// Len returns the length of the history being replayed.
func (r *Replayer) Len() int {
	return len(r.events)
}

// Timeline returns the timeline at the current frame.
func (r *Replayer) Timeline() *Timeline {
	return r.builder.Snapshot()
}

// Diagnostics returns the anomalies found up to the current frame.
func (r *Replayer) Diagnostics() []Diagnostic {
	return r.builder.DiagnosticRecords()
}

// VerifyIncremental checks that, for every split point k, appending
// events[:k] and then events[k:] yields the same timeline as appending all
// events at once. Split points are checked concurrently, each with its own
// builder.
func VerifyIncremental(ctx context.Context, events []RawEvent) error {
	want, _ := engine.BuildTimeline(events, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for k := 0; k <= len(events); k++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			b := engine.NewBuilder()
			b.AppendAll(events[:k])
			// Force a projection at the split so memoized state is exercised.
			_ = b.Snapshot()
			b.AppendAll(events[k:])

			if diff := cmp.Diff(want, b.Snapshot()); diff != "" {
				return fmt.Errorf("%w at frame %d (-batch +incremental):\n%s", ErrReplayMismatch, k, diff)
			}
			return nil
		})
	}

	return g.Wait()
}
