package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"tripshare/pkg/logger"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	queue     chan kafka.Message
	committed []int64
	mu        sync.Mutex
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{queue: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.queue <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("42").
		WithValue(map[string]int{"booked": 3}).
		WithEventID("evt-1").
		WithEventType("booking.participated").
		WithSource("bookings").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.GetEventID() != "evt-1" {
		t.Errorf("expected event id evt-1, got %s", msg.GetEventID())
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("expected timestamp header")
	}

	var decoded map[string]int
	if err := msg.DecodeValue(&decoded); err != nil || decoded["booked"] != 3 {
		t.Errorf("expected booked=3, got %v (%v)", decoded, err)
	}

	if _, err := NewMessage().WithValue(map[string]int{}).Build(); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if _, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build(); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{Headers: map[string]string{}}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if msg.GetRetryCount() != 12 {
		t.Errorf("expected 12, got %d", msg.GetRetryCount())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"explicit permanent", NewPermanentError("bad payload", nil), ErrorTypePermanent},
		{"wrapped transient", errors.Join(errors.New("ctx"), NewTransientError("x", nil)), ErrorTypeTransient},
		{"unknown", errors.New("boom"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestProducer_MiddlewareOrderAndValidation(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "tripshare.bookings")

	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "outer")
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "inner:"+msg.Topic)
		return next(ctx, msg)
	})

	msg, _ := NewMessage().WithKey("7").WithValue("x").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner:tripshare.bookings" {
		t.Errorf("unexpected middleware order %v", order)
	}
	if len(w.written) != 1 || string(w.written[0].Key) != "7" {
		t.Errorf("expected one message keyed 7, got %v", w.written)
	}

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), msg); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
	if !w.closed {
		t.Error("expected writer closed")
	}
}

func TestProducer_WriteFailureIsTransient(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("leader not available")}, "t")
	msg, _ := NewMessage().WithKey("k").WithValue(1).Build()

	err := p.Publish(context.Background(), msg)
	if ClassifyError(err) != ErrorTypeTransient {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Key: []byte("a"), Value: []byte("1"), Offset: 1},
		kafka.Message{Key: []byte("b"), Value: []byte("2"), Offset: 2},
	)

	ctx, cancel := context.WithCancel(context.Background())
	calls := map[string]int{}
	handler := func(_ context.Context, msg Message) error {
		calls[msg.Key]++
		if msg.Key == "a" && calls["a"] < 3 {
			return NewTransientError("flaky", nil)
		}
		if msg.Key == "b" {
			defer cancel()
		}
		return nil
	}

	c := newConsumer(reader, "t", "g", handler, testLogger())
	c.maxRetries = 5

	if err := c.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls["a"] != 3 {
		t.Errorf("expected 3 attempts for a, got %d", calls["a"])
	}
	if len(reader.committed) != 2 {
		t.Errorf("expected both offsets committed, got %v", reader.committed)
	}
}

func TestConsumer_DeadLettersPermanentFailures(t *testing.T) {
	reader := newFakeReader(kafka.Message{Key: []byte("a"), Value: []byte("{"), Offset: 9})
	dlq := &fakeWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	handler := func(_ context.Context, msg Message) error {
		defer cancel()
		var v map[string]any
		return msg.DecodeValue(&v)
	}

	c := newConsumer(reader, "t", "g", handler, testLogger())
	c.maxRetries = 3
	c.deadLetter = dlq

	_ = c.Start(ctx)

	if len(dlq.written) != 1 {
		t.Fatalf("expected one dead-lettered message, got %d", len(dlq.written))
	}
	var original string
	for _, h := range dlq.written[0].Headers {
		if h.Key == HeaderOriginalTopic {
			original = string(h.Value)
		}
	}
	if original != "t" {
		t.Errorf("expected original topic t, got %q", original)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 9 {
		t.Errorf("expected offset 9 committed, got %v", reader.committed)
	}
}
