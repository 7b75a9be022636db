package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"flashquiz-backend/internal/models"
)

// Publisher fans user events out over Redis pub/sub. The websocket hub
// subscribes to the same per-user channel.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user_updates:%s", userID)
}

func (p *Publisher) Notify(ctx context.Context, userID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Type, err)
	}
	return p.redis.Publish(ctx, UserChannel(userID), string(data)).Err()
}
