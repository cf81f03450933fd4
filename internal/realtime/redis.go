package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChannelPrefix prefixes the per-table Redis channels.
const RedisChannelPrefix = "realtime:"

// RedisChannel returns the Redis channel carrying changes for a table.
func RedisChannel(table string) string {
	return RedisChannelPrefix + table
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type redisSubscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisListener consumes changes relayed onto Redis pub/sub.
type RedisListener struct {
	*Broker

	subscribe  func(ctx context.Context) (redisSubscription, error)
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRedisListener creates a listener on the realtime:* channels.
func NewRedisListener(client *redis.Client) *RedisListener {
	return &RedisListener{
		Broker:     NewBroker(),
		minBackoff: minReconnectBackoff,
		maxBackoff: maxReconnectBackoff,
		subscribe: func(ctx context.Context) (redisSubscription, error) {
			pubsub := client.PSubscribe(ctx, RedisChannelPrefix+"*")
			if _, err := pubsub.Receive(ctx); err != nil {
				pubsub.Close()
				return nil, fmt.Errorf("subscribe redis channels: %w", err)
			}
			return pubsub, nil
		},
	}
}

// Run pattern-subscribes to every table channel until ctx is cancelled. A closed
// subscription is re-established with capped exponential backoff.
func (l *RedisListener) Run(ctx context.Context) error {
	return reconnectLoop(ctx, "redis", l.minBackoff, l.maxBackoff, l.listenOnce)
}

func (l *RedisListener) listenOnce(ctx context.Context, connected func()) error {
	sub, err := l.subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	connected()
	log.Printf("realtime: listening redis pattern=%s*", RedisChannelPrefix)
	l.Connected()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			l.handleMessage(msg.Channel, msg.Payload)
		}
	}
}

func (l *RedisListener) handleMessage(channel, payload string) {
	change, err := DecodeChange([]byte(payload))
	if err != nil {
		log.Printf("realtime: drop redis message channel=%s err=%v", channel, err)
		return
	}
	if table := strings.TrimPrefix(channel, RedisChannelPrefix); table != change.Table {
		log.Printf("realtime: channel/table mismatch channel=%s table=%s", channel, change.Table)
	}
	l.Dispatch(change)
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Relay republishes changes from a source listener onto Redis so that many API
// instances can share one database LISTEN connection.
type Relay struct {
	source    Listener
	publisher publisher
}

// NewRelay wires a source listener to a Redis publisher.
func NewRelay(source Listener, client publisher) *Relay {
	return &Relay{source: source, publisher: client}
}

// Run forwards every change until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	handle, err := r.source.Subscribe(ctx, Subscription{Table: AnyTable, Event: EventAll}, func(change Change) {
		r.forward(ctx, change)
	})
	if err != nil {
		return fmt.Errorf("subscribe relay source: %w", err)
	}
	defer handle.Close()

	<-ctx.Done()
	return ctx.Err()
}

func (r *Relay) forward(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("realtime: relay encode table=%s err=%v", change.Table, err)
		return
	}
	if err := r.publisher.Publish(ctx, RedisChannel(change.Table), payload).Err(); err != nil {
		log.Printf("realtime: relay publish table=%s err=%v", change.Table, err)
	}
}
