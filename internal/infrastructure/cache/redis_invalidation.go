package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/domain/analytics"
)

const (
	// DefaultInvalidationChannel is the Pub/Sub channel shared by all instances
	DefaultInvalidationChannel = "crm:metrics:invalidate"

	defaultCloseTimeout   = 5 * time.Second
	defaultPublishTimeout = time.Second
	defaultRetryMin       = 500 * time.Millisecond
	defaultRetryMax       = 30 * time.Second
)

var errSubscriptionClosed = errors.New("invalidation channel closed")

// RedisConfig holds the connection settings for the broadcaster
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// InvalidationAction is the scope of a broadcast invalidation
type InvalidationAction string

const (
	ActionKey     InvalidationAction = "key"
	ActionSubject InvalidationAction = "subject"
	ActionAll     InvalidationAction = "all"
)

// InvalidationMessage is the wire format shared between instances
type InvalidationMessage struct {
	Origin      string                `json:"origin"`
	Action      InvalidationAction    `json:"action"`
	Key         *analytics.MetricKey  `json:"key,omitempty"`
	SubjectType analytics.SubjectType `json:"subject_type,omitempty"`
	SubjectID   uuid.UUID             `json:"subject_id,omitempty"`
	Timestamp   int64                 `json:"timestamp"`
}

// RedisInvalidationBroadcaster applies invalidations to the local cache and
// fans them out to other instances over Redis Pub/Sub. Messages received
// from peers are applied to the local cache only.
//
// The local invalidation always happens first and never depends on Redis.
type RedisInvalidationBroadcaster struct {
	local          analytics.Invalidator
	client         *redis.Client
	ownsClient     bool
	channel        string
	origin         string
	publishTimeout time.Duration
	retryMin       time.Duration
	retryMax       time.Duration
	logger         *zap.Logger

	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// BroadcasterOption is a functional option for configuring the broadcaster
type BroadcasterOption func(*RedisInvalidationBroadcaster)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) BroadcasterOption {
	return func(b *RedisInvalidationBroadcaster) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithOrigin sets the instance id stamped on outgoing messages
func WithOrigin(origin string) BroadcasterOption {
	return func(b *RedisInvalidationBroadcaster) {
		b.origin = origin
	}
}

// WithPublishTimeout bounds each publish call
func WithPublishTimeout(d time.Duration) BroadcasterOption {
	return func(b *RedisInvalidationBroadcaster) {
		b.publishTimeout = d
	}
}

// WithResubscribeBackoff bounds the delay between subscription attempts.
// The delay doubles from initial up to ceiling after each consecutive failure.
func WithResubscribeBackoff(initial, ceiling time.Duration) BroadcasterOption {
	return func(b *RedisInvalidationBroadcaster) {
		if initial > 0 {
			b.retryMin = initial
		}
		if ceiling > 0 {
			b.retryMax = ceiling
		}
		b.retryMax = max(b.retryMax, b.retryMin)
	}
}

// WithBroadcasterLogger sets the logger for the broadcaster
func WithBroadcasterLogger(logger *zap.Logger) BroadcasterOption {
	return func(b *RedisInvalidationBroadcaster) {
		b.logger = logger
	}
}

// NewRedisInvalidationBroadcaster connects to Redis and returns a
// broadcaster that owns the client.
func NewRedisInvalidationBroadcaster(cfg RedisConfig, local analytics.Invalidator, opts ...BroadcasterOption) (*RedisInvalidationBroadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	b := NewRedisInvalidationBroadcasterWithClient(client, local, opts...)
	b.ownsClient = true
	return b, nil
}

// NewRedisInvalidationBroadcasterWithClient uses an existing client.
// The caller retains ownership of the client.
func NewRedisInvalidationBroadcasterWithClient(client *redis.Client, local analytics.Invalidator, opts ...BroadcasterOption) *RedisInvalidationBroadcaster {
	b := &RedisInvalidationBroadcaster{
		local:          local,
		client:         client,
		channel:        DefaultInvalidationChannel,
		origin:         uuid.NewString(),
		publishTimeout: defaultPublishTimeout,
		retryMin:       defaultRetryMin,
		retryMax:       defaultRetryMax,
		logger:         zap.NewNop(),
		doneCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invalidate drops key locally and on every peer
func (b *RedisInvalidationBroadcaster) Invalidate(key analytics.MetricKey) {
	b.local.Invalidate(key)
	b.publish(InvalidationMessage{Action: ActionKey, Key: &key})
}

// InvalidateSubject drops every metric of the subject locally and on every peer
func (b *RedisInvalidationBroadcaster) InvalidateSubject(subject analytics.SubjectType, id uuid.UUID) {
	b.local.InvalidateSubject(subject, id)
	b.publish(InvalidationMessage{Action: ActionSubject, SubjectType: subject, SubjectID: id})
}

// InvalidateAll flushes the local cache and every peer
func (b *RedisInvalidationBroadcaster) InvalidateAll() {
	b.local.InvalidateAll()
	b.publish(InvalidationMessage{Action: ActionAll})
}

func (b *RedisInvalidationBroadcaster) publish(msg InvalidationMessage) {
	msg.Origin = b.origin
	msg.Timestamp = time.Now().UnixNano()

	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal invalidation message",
			zap.String("action", string(msg.Action)),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn("Failed to broadcast metric invalidation",
			zap.String("channel", b.channel),
			zap.String("action", string(msg.Action)),
			zap.Error(err))
		return
	}

	b.logger.Debug("Broadcast metric invalidation",
		zap.String("action", string(msg.Action)),
		zap.String("channel", b.channel))
}

// Subscribe listens for peer invalidations until ctx is cancelled or Close
// is called. A dropped or failed subscription is retried with backoff. The
// local cache is flushed whenever the subscription ends and again when it
// is re-established, since peer messages may have been missed in between.
// It blocks, so callers usually run it in a goroutine.
func (b *RedisInvalidationBroadcaster) Subscribe(ctx context.Context) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	b.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	b.cancelFn = cancel
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		b.markDone()
	}()

	delay := b.retryMin
	for attempt := 0; ; attempt++ {
		established, err := b.subscribeOnce(subCtx, attempt > 0)
		b.local.InvalidateAll()
		if subCtx.Err() != nil {
			b.logger.Info("Metric invalidation subscription stopped")
			return subCtx.Err()
		}

		if established {
			delay = b.retryMin
		}
		b.logger.Warn("Metric invalidation subscription lost, local cache flushed",
			zap.String("channel", b.channel),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-subCtx.Done():
			timer.Stop()
			b.logger.Info("Metric invalidation subscription stopped")
			return subCtx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, b.retryMax)
	}
}

// subscribeOnce runs a single subscription until it drops. established
// reports whether the channel was joined before the failure.
func (b *RedisInvalidationBroadcaster) subscribeOnce(ctx context.Context, resubscribe bool) (established bool, err error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	if resubscribe {
		b.local.InvalidateAll()
	}
	b.logger.Info("Subscribed to metric invalidation channel",
		zap.String("channel", b.channel),
		zap.String("origin", b.origin),
		zap.Bool("resubscribe", resubscribe))

	// The client reconnects on its own; a fresh subscription confirmation
	// means messages sent while it was away are lost.
	ch := pubsub.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, errSubscriptionClosed
			}
			switch m := msg.(type) {
			case *redis.Message:
				b.HandlePayload(m.Payload)
			case *redis.Subscription:
				if m.Kind == "subscribe" {
					b.logger.Warn("Metric invalidation channel reconnected, flushing local cache",
						zap.String("channel", m.Channel))
					b.local.InvalidateAll()
				}
			}
		}
	}
}

// HandlePayload applies one received message to the local cache.
// Messages stamped with this instance's origin are ignored.
func (b *RedisInvalidationBroadcaster) HandlePayload(payload string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic applying metric invalidation", zap.Any("panic", r))
			b.local.InvalidateAll()
		}
	}()

	var msg InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		// An unreadable message may have covered any key.
		b.logger.Error("Failed to unmarshal invalidation message, flushing local cache",
			zap.String("payload", payload),
			zap.Error(err))
		b.local.InvalidateAll()
		return
	}
	if msg.Origin == b.origin {
		return
	}

	switch msg.Action {
	case ActionKey:
		if msg.Key == nil {
			b.local.InvalidateAll()
			return
		}
		b.local.Invalidate(*msg.Key)
	case ActionSubject:
		b.local.InvalidateSubject(msg.SubjectType, msg.SubjectID)
	default:
		b.local.InvalidateAll()
	}
}

func (b *RedisInvalidationBroadcaster) markDone() {
	b.doneOnce.Do(func() {
		close(b.doneCh)
	})
}

// Close stops the subscription and releases the client if owned
func (b *RedisInvalidationBroadcaster) Close() error {
	b.mu.Lock()
	cancelFn := b.cancelFn
	b.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-b.doneCh:
		case <-time.After(defaultCloseTimeout):
			b.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}

// Origin returns the instance id stamped on outgoing messages
func (b *RedisInvalidationBroadcaster) Origin() string {
	return b.origin
}

var _ analytics.Invalidator = (*RedisInvalidationBroadcaster)(nil)
