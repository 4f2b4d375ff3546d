package pipeline

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
)

// ErrStreamClosed is returned by Next after the consumer closed the stream
var ErrStreamClosed = goerr.New("stream closed")

// Stream is the single-pass sequence of progress events of one run.
// Producers never block; the queue is unbounded and keeps push order.
// The stream ends with a model.EventDone event, after which Next returns io.EOF.
type Stream struct {
	mu       sync.Mutex
	items    []model.Event
	notify   chan struct{}
	finished bool // completion marker queued
	drained  bool // completion marker delivered
	closed   bool
	cancel   context.CancelFunc
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		notify: make(chan struct{}, 1),
		cancel: cancel,
	}
}

// push appends e. It returns false once the stream is closed or complete.
func (s *Stream) push(e model.Event) bool {
	s.mu.Lock()
	if s.closed || s.finished {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items, e)
	if e.IsTerminal() {
		s.finished = true
	}
	s.mu.Unlock()

	s.signal()
	return true
}

func (s *Stream) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next event is available. It returns io.EOF after the
// completion marker was delivered, ErrStreamClosed after Close, or the
// context error.
func (s *Stream) Next(ctx context.Context) (model.Event, error) {
	for {
		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			s.signal()
			return model.Event{}, ErrStreamClosed
		case len(s.items) > 0:
			e := s.items[0]
			s.items[0] = model.Event{}
			s.items = s.items[1:]
			if e.IsTerminal() {
				s.drained = true
			}
			more := len(s.items) > 0
			s.mu.Unlock()
			if more {
				// wake another consumer waiting on the same stream
				s.signal()
			}
			return e, nil
		case s.drained:
			s.mu.Unlock()
			s.signal()
			return model.Event{}, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// All yields events up to and including the completion marker.
// Iteration stops early when ctx is cancelled or the stream is closed.
func (s *Stream) All(ctx context.Context) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		for {
			e, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(e) || e.IsTerminal() {
				return
			}
		}
	}
}

// Close cancels the run and discards pending events. Safe to call repeatedly.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.items = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.signal()
}

// Collect drains s into a report. The report is marked Complete only when
// the completion marker was observed.
func Collect(ctx context.Context, s *Stream) (*model.Report, error) {
	report := &model.Report{}
	for {
		e, err := s.Next(ctx)
		if err == io.EOF {
			return report, nil
		}
		if err != nil {
			return report, goerr.Wrap(err, "collect stream")
		}
		report.Apply(e)
		if e.IsTerminal() {
			return report, nil
		}
	}
}
