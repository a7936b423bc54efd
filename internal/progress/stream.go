// Package progress provides the append-only line stream a running job emits
// and exactly one consumer reads. The channel is unbuffered: the producer
// blocks until the consumer has room, and learns promptly when the consumer
// has gone away.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrConsumerGone is returned by Send once the consumer has cancelled the
// stream. The producer is expected to abort its remaining work.
var ErrConsumerGone = errors.New("progress: consumer gone")

// Reserved line prefixes. Stage markers separate pipeline phases; exactly
// one terminal marker ends every stream that runs to an outcome.
const (
	StagePrefix   = "-- "
	SuccessMarker = "== FINISHED"
	FailurePrefix = "!! FAILED: "
)

// Line is one timestamped entry on the stream.
type Line struct {
	At   time.Time
	Text string
}

// Terminal reports whether the line is one of the two terminal markers.
func (l Line) Terminal() bool {
	return l.Text == SuccessMarker || len(l.Text) >= len(FailurePrefix) && l.Text[:len(FailurePrefix)] == FailurePrefix
}

// Stream is a single-producer, single-consumer line channel.
type Stream struct {
	ch        chan Line
	done      chan struct{}
	closeOnce sync.Once
	doneOnce  sync.Once
}

// NewStream creates an open stream.
func NewStream() *Stream {
	return &Stream{
		ch:   make(chan Line),
		done: make(chan struct{}),
	}
}

// Send delivers one line to the consumer, blocking until it is received.
// It returns ErrConsumerGone if the consumer cancelled the stream, or the
// context error if ctx is done first.
func (s *Stream) Send(ctx context.Context, text string) error {
	// Poll for a departed consumer before committing to the send.
	select {
	case <-s.done:
		return ErrConsumerGone
	default:
	}

	line := Line{At: time.Now(), Text: text}
	select {
	case s.ch <- line:
		return nil
	case <-s.done:
		return ErrConsumerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sendf formats and delivers one line.
func (s *Stream) Sendf(ctx context.Context, format string, args ...any) error {
	return s.Send(ctx, fmt.Sprintf(format, args...))
}

// Stage delivers a stage-boundary marker line.
func (s *Stream) Stage(ctx context.Context, name string) error {
	return s.Send(ctx, StagePrefix+name)
}

// Lines returns the consumer side. It is closed by CloseSend when the
// producer is finished.
func (s *Stream) Lines() <-chan Line {
	return s.ch
}

// CloseSend marks the producer side finished. No Send may follow.
func (s *Stream) CloseSend() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Cancel is called by the consumer when it stops reading. Pending and
// subsequent sends fail with ErrConsumerGone.
func (s *Stream) Cancel() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed when the consumer cancels the stream. The producer selects
// on it to interrupt blocking work between sends.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Cancelled reports whether the consumer has cancelled the stream.
func (s *Stream) Cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
