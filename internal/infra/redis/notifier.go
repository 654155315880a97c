package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "quizroom:"

// Notifier fans out document change signals over Redis pub/sub so every
// service instance sees writes made by its peers. Payloads carry no data;
// subscribers re-read the watched document on each signal.
type Notifier struct {
	client *redis.Client
	log    *zap.Logger
}

func NewNotifier(client *redis.Client, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{client: client, log: log}
}

func (n *Notifier) Publish(ctx context.Context, topic string) {
	if err := n.client.Publish(ctx, channelPrefix+topic, "1").Err(); err != nil {
		n.log.Warn("failed to publish change signal", zap.String("topic", topic), zap.Error(err))
	}
}

func (n *Notifier) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	sub := n.client.Subscribe(ctx, channelPrefix+topic)
	// Receive blocks until the subscription is confirmed, so no signal
	// published after this call can be missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range sub.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel, nil
}
