package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/resilience"
)

const defaultQueueGroup = "recommenders"

var errWorkerStopping = errors.New("worker is shutting down")

// RecommendHandler runs one dispatched recommendation request.
type RecommendHandler func(ctx context.Context, req domain.RecommendRequest) (domain.RecommendationResult, error)

type Queue struct {
	conn           *nats.Conn
	subject        string
	queueGroup     string
	requestTimeout time.Duration
	maxConcurrent  int
	drainTimeout   time.Duration
	executor       *resilience.Executor
	logger         *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	// RequestTimeout bounds one dispatched run end to end.
	RequestTimeout time.Duration
	// MaxConcurrent bounds how many requests a serving worker runs at once.
	MaxConcurrent int
	// DrainTimeout bounds how long Serve waits for pending deliveries on shutdown.
	DrainTimeout       time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("steam-game-recommender"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newQueue(conn, subject, options, logger), nil
}

func newQueue(conn *nats.Conn, subject string, options Options, logger *slog.Logger) *Queue {
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = defaultQueueGroup
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Minute
	}
	maxConcurrent := options.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	drainTimeout := options.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		queueGroup:     queueGroup,
		requestTimeout: requestTimeout,
		maxConcurrent:  maxConcurrent,
		drainTimeout:   drainTimeout,
		executor:       options.ResilienceExecutor,
		logger:         logger,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// DispatchRecommend sends req to one worker of the queue group and waits for its reply.
func (q *Queue) DispatchRecommend(ctx context.Context, req domain.RecommendRequest) (domain.RecommendationResult, error) {
	payload, err := encodeRequest(req)
	if err != nil {
		return domain.RecommendationResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, q.requestTimeout)
	defer cancel()

	var reply *nats.Msg
	call := func(callCtx context.Context) error {
		msg, err := q.conn.RequestWithContext(callCtx, q.subject, payload)
		if err != nil {
			return fmt.Errorf("nats request: %w", err)
		}
		reply = msg
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.request", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.RecommendationResult{}, wrapTemporaryIfNeeded(err)
	}
	return decodeReply(reply.Data)
}

// Serve answers dispatched requests until ctx is cancelled. Messages delivered after
// that get an error reply; runs already accepted finish on their own timeout before
// Serve returns.
func (q *Queue) Serve(ctx context.Context, handler RecommendHandler) error {
	loop := newServingLoop(q, context.WithoutCancel(ctx), handler)

	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		loop.accept(msg.Data, msg.Respond)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	q.logger.Info("nats_serving", "subject", q.subject, "queue_group", q.queueGroup)

	<-ctx.Done()
	loop.close()
	if err := sub.Drain(); err != nil {
		loop.wait()
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := waitDrained(sub, q.drainTimeout); err != nil {
		q.logger.Warn("nats_drain_incomplete", "error", err)
	}
	loop.wait()
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	q.logger.Info("nats_serving_stopped", "subject", q.subject)
	return nil
}

// waitDrained polls until the subscription has delivered its pending messages and
// been removed.
func waitDrained(sub *nats.Subscription, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for sub.IsValid() {
		select {
		case <-deadline.C:
			return fmt.Errorf("subscription still draining after %s", timeout)
		case <-ticker.C:
		}
	}
	return nil
}

// servingLoop runs accepted requests with bounded concurrency.
type servingLoop struct {
	queue   *Queue
	base    context.Context
	handler RecommendHandler
	slots   chan struct{}

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func newServingLoop(q *Queue, base context.Context, handler RecommendHandler) *servingLoop {
	return &servingLoop{
		queue:   q,
		base:    base,
		handler: handler,
		slots:   make(chan struct{}, q.maxConcurrent),
	}
}

// accept blocks the delivering callback until a slot is free, then answers data on
// its own goroutine.
func (l *servingLoop) accept(data []byte, respond func([]byte) error) {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		if err := respond(encodeReply(domain.RecommendationResult{}, errWorkerStopping)); err != nil {
			l.queue.logger.Error("nats_respond_failed", "error", err)
		}
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	l.slots <- struct{}{}
	go func() {
		defer l.wg.Done()
		defer func() { <-l.slots }()

		if err := respond(l.queue.handle(l.base, data, l.handler)); err != nil {
			l.queue.logger.Error("nats_respond_failed", "error", err)
		}
	}()
}

func (l *servingLoop) close() {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
}

func (l *servingLoop) wait() {
	l.wg.Wait()
}

func (q *Queue) handle(ctx context.Context, data []byte, handler RecommendHandler) []byte {
	req, err := decodeRequest(data)
	if err != nil {
		q.logger.Warn("nats_bad_request", "error", err)
		return encodeReply(domain.RecommendationResult{}, err)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, q.requestTimeout)
	defer cancel()
	result, err := handler(handlerCtx, req)
	if err != nil {
		q.logger.Error("nats_handler_failed", "query", req.Query, "error", err)
	}
	return encodeReply(result, err)
}
