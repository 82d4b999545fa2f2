package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

func intPtr(v int) *int { return &v }

func newTestQueue() *Queue {
	return newQueue(nil, "recommend.requests", Options{}, nil)
}

func TestHandleRunsHandlerAndWrapsResult(t *testing.T) {
	q := newTestQueue()
	var got domain.RecommendRequest

	reply := q.handle(context.Background(), []byte(`{"query":"  co-op shooter ","max_results":3}`),
		func(_ context.Context, req domain.RecommendRequest) (domain.RecommendationResult, error) {
			got = req
			return domain.RecommendationResult{Query: req.Query, TotalFound: 4}, nil
		})

	if got.Query != "co-op shooter" || got.MaxResults == nil || *got.MaxResults != 3 {
		t.Fatalf("unexpected request passed to handler: %+v", got)
	}
	result, err := decodeReply(reply)
	if err != nil {
		t.Fatalf("decodeReply() error = %v", err)
	}
	if result.TotalFound != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHandleRejectsEmptyQueryWithoutCallingHandler(t *testing.T) {
	q := newTestQueue()
	called := false

	reply := q.handle(context.Background(), []byte(`{"query":"   "}`),
		func(context.Context, domain.RecommendRequest) (domain.RecommendationResult, error) {
			called = true
			return domain.RecommendationResult{}, nil
		})

	if called {
		t.Fatalf("handler must not run for an empty query")
	}
	var envelope map[string]any
	if err := json.Unmarshal(reply, &envelope); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if envelope["error"] == nil || envelope["result"] != nil {
		t.Fatalf("expected error-only reply, got %v", envelope)
	}
}

func TestDecodeReplyErrorIsTemporary(t *testing.T) {
	_, err := decodeReply(encodeReply(domain.RecommendationResult{}, errors.New("worker overloaded")))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}

	_, err = decodeReply([]byte(`{}`))
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed reply error, got %v", err)
	}
}

func TestEncodeRequestKeepsWireNames(t *testing.T) {
	payload, err := encodeRequest(domain.RecommendRequest{Query: "rpg", MaxResults: intPtr(5)})
	if err != nil {
		t.Fatalf("encodeRequest() error = %v", err)
	}
	if string(payload) != `{"query":"rpg","max_results":5}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	if _, err := encodeRequest(domain.RecommendRequest{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty query, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if !classifyNATSError(nats.ErrNoResponders).Retryable {
		t.Fatalf("no responders should be retryable")
	}
	if classifyNATSError(context.Canceled).Retryable {
		t.Fatalf("cancellation must not be retried")
	}
	if !domain.IsKind(wrapTemporaryIfNeeded(context.DeadlineExceeded), domain.ErrTemporary) {
		t.Fatalf("dispatch deadline should surface as temporary")
	}
}

type replyRecorder struct {
	mu      sync.Mutex
	replies [][]byte
}

func (r *replyRecorder) respond(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, data)
	return nil
}

func (r *replyRecorder) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.replies...)
}

func TestServingLoopAnswersLateMessagesWithError(t *testing.T) {
	q := newTestQueue()
	called := false
	loop := newServingLoop(q, context.Background(), func(context.Context, domain.RecommendRequest) (domain.RecommendationResult, error) {
		called = true
		return domain.RecommendationResult{}, nil
	})
	loop.close()

	var rec replyRecorder
	loop.accept([]byte(`{"query":"rpg"}`), rec.respond)
	loop.wait()

	if called {
		t.Fatalf("handler must not run after shutdown started")
	}
	replies := rec.all()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	if _, err := decodeReply(replies[0]); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error reply, got %v", err)
	}
}

func TestServingLoopFinishesInFlightRunAfterCancel(t *testing.T) {
	q := newTestQueue()
	parent, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr error

	loop := newServingLoop(q, context.WithoutCancel(parent), func(ctx context.Context, req domain.RecommendRequest) (domain.RecommendationResult, error) {
		close(started)
		<-release
		handlerErr = ctx.Err()
		return domain.RecommendationResult{Query: req.Query, TotalFound: 2}, nil
	})

	var rec replyRecorder
	loop.accept([]byte(`{"query":"rpg"}`), rec.respond)
	<-started
	cancel()
	loop.close()

	waited := make(chan struct{})
	go func() {
		loop.wait()
		close(waited)
	}()
	select {
	case <-waited:
		t.Fatalf("wait returned before the in-flight run finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatalf("wait did not return after the run finished")
	}

	if handlerErr != nil {
		t.Fatalf("in-flight run must not see the serving context cancel, got %v", handlerErr)
	}
	replies := rec.all()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	result, err := decodeReply(replies[0])
	if err != nil || result.TotalFound != 2 {
		t.Fatalf("expected completed result, got %+v err=%v", result, err)
	}
}

func TestServingLoopBoundsConcurrency(t *testing.T) {
	q := newQueue(nil, "recommend.requests", Options{MaxConcurrent: 1}, nil)
	release := make(chan struct{})
	var mu sync.Mutex
	running, peak := 0, 0

	loop := newServingLoop(q, context.Background(), func(context.Context, domain.RecommendRequest) (domain.RecommendationResult, error) {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return domain.RecommendationResult{}, nil
	})

	var rec replyRecorder
	accepted := make(chan struct{})
	go func() {
		for range 3 {
			loop.accept([]byte(`{"query":"rpg"}`), rec.respond)
		}
		close(accepted)
	}()
	close(release)
	<-accepted
	loop.close()
	loop.wait()

	if peak != 1 {
		t.Fatalf("expected at most one concurrent run, got %d", peak)
	}
	if got := len(rec.all()); got != 3 {
		t.Fatalf("expected three replies, got %d", got)
	}
}
