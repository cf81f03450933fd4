package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NotifyChannel is the Postgres channel the change trigger notifies on.
const NotifyChannel = "table_changes"

type notificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// PostgresListener holds one LISTEN connection and dispatches its notifications.
type PostgresListener struct {
	*Broker

	dial       func(ctx context.Context) (notificationSource, error)
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewPostgresListener creates a listener for the given connection string.
func NewPostgresListener(databaseURL string) *PostgresListener {
	return &PostgresListener{
		Broker:     NewBroker(),
		minBackoff: minReconnectBackoff,
		maxBackoff: maxReconnectBackoff,
		dial: func(ctx context.Context) (notificationSource, error) {
			conn, err := pgx.Connect(ctx, databaseURL)
			if err != nil {
				return nil, fmt.Errorf("connect listener: %w", err)
			}
			if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
				conn.Close(context.Background())
				return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
			}
			return conn, nil
		},
	}
}

// Run receives notifications until ctx is cancelled. Connection failures are
// logged and retried with capped exponential backoff.
func (l *PostgresListener) Run(ctx context.Context) error {
	return reconnectLoop(ctx, "postgres", l.minBackoff, l.maxBackoff, l.listenOnce)
}

func (l *PostgresListener) listenOnce(ctx context.Context, connected func()) error {
	source, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer source.Close(context.Background())
	connected()
	log.Printf("realtime: listening channel=%s", NotifyChannel)
	l.Connected()

	for {
		notification, err := source.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		change, err := DecodeChange([]byte(notification.Payload))
		if err != nil {
			log.Printf("realtime: drop notification channel=%s err=%v", notification.Channel, err)
			continue
		}
		l.Dispatch(change)
	}
}
