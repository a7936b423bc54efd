package progress

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStream_SendAndReceive(t *testing.T) {
	s := NewStream()

	go func() {
		_ = s.Send(context.Background(), "hello")
		_ = s.Stage(context.Background(), "split")
		s.CloseSend()
	}()

	var got []string
	for line := range s.Lines() {
		got = append(got, line.Text)
		if line.At.IsZero() {
			t.Error("line missing a timestamp")
		}
	}

	if len(got) != 2 || got[0] != "hello" || got[1] != StagePrefix+"split" {
		t.Errorf("unexpected lines: %v", got)
	}
}

func TestStream_SendBlocksUntilConsumed(t *testing.T) {
	s := NewStream()
	delivered := make(chan struct{})

	go func() {
		_ = s.Send(context.Background(), "one")
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("send returned before the consumer read the line")
	case <-time.After(20 * time.Millisecond):
	}

	<-s.Lines()
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("send did not return after the line was consumed")
	}
}

func TestStream_CancelFailsPendingSend(t *testing.T) {
	s := NewStream()
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Send(context.Background(), "never read")
	}()

	time.Sleep(10 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConsumerGone) {
			t.Errorf("expected ErrConsumerGone, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending send was not released by Cancel")
	}
}

func TestStream_SendAfterCancel(t *testing.T) {
	s := NewStream()
	s.Cancel()

	if err := s.Send(context.Background(), "late"); !errors.Is(err, ErrConsumerGone) {
		t.Errorf("expected ErrConsumerGone, got %v", err)
	}
	if !s.Cancelled() {
		t.Error("Cancelled() should report true")
	}
}

func TestStream_ContextCancellation(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, "line"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStream_CancelIsIdempotent(t *testing.T) {
	s := NewStream()
	s.Cancel()
	s.Cancel() // must not panic
	s.CloseSend()
	s.CloseSend() // must not panic
}

func TestLine_Terminal(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{SuccessMarker, true},
		{FailurePrefix + "ffprobe exploded", true},
		{StagePrefix + "split", false},
		{"plain progress", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := (Line{Text: tc.text}).Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %t, want %t", tc.text, got, tc.want)
		}
	}
}
