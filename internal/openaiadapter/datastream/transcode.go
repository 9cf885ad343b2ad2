package datastream

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/florianilch/vela-proxy/internal/openaiadapter/types"
)

// Transcode converts an upstream chunk sequence into chat completion stream events.
//
// It is a single forward pass: chunk → lines → frames → deltas → envelopes. Events are
// produced on demand, so the upstream is read no faster than the consumer pulls. When
// the consumer stops iterating, ctx is cancelled, or a terminal frame was processed,
// Transcode stops pulling chunks. The [DONE] marker is yielded only after a terminal
// frame; a truncated upstream simply ends the sequence. Source errors are yielded once
// and end the sequence.
func Transcode(ctx context.Context, s *Session, chunks iter.Seq2[[]byte, error]) iter.Seq2[*types.StreamEvent, error] {
	return func(yield func(*types.StreamEvent, error) bool) {
		start := time.Now()
		defer func() {
			s.close(OutcomeTruncated)
			s.cfg.Recorder.StreamFinished(s.outcome, time.Since(start))
		}()

		observed := func(yield func([]byte, error) bool) {
			for chunk, err := range chunks {
				if err == nil {
					s.begin()
				}
				if !yield(chunk, err) {
					return
				}
			}
		}

		for line, err := range Lines(observed) {
			if ctx.Err() != nil {
				s.close(OutcomeCancelled)
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					s.close(OutcomeCancelled)
					return
				}
				slog.WarnContext(ctx, "upstream stream interrupted", "error", err)
				yield(nil, err)
				return
			}

			if strings.TrimSpace(line) == "" {
				continue
			}

			for _, ev := range s.Process(ctx, Classify(line)) {
				if !yield(ev, nil) {
					s.close(OutcomeCancelled)
					return
				}
			}

			if s.state == StateTerminated {
				return
			}
		}

		if s.state != StateTerminated {
			slog.DebugContext(ctx, "upstream closed without end of turn")
		}
	}
}
