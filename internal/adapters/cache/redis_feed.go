package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

var _ domain.DocumentFeed = (*RedisFeed)(nil)

// RedisFeed carries document changes over Redis pub/sub so every API instance
// can serve watchers of any user.
type RedisFeed struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{rdb: rdb, logger: logger}
}

func channelName(userID string) string {
	return fmt.Sprintf("documents:%s", userID)
}

func (f *RedisFeed) Publish(ctx context.Context, change domain.DocumentChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, channelName(change.UserID), payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, userID string) (<-chan domain.DocumentChange, error) {
	sub := f.rdb.Subscribe(ctx, channelName(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", userID, err)
	}

	out := make(chan domain.DocumentChange, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.DocumentChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.logger.Warn("malformed document change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				default:
				}
			}
		}
	}()

	return out, nil
}
