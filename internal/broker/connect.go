package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/accord-chat/accord-server/internal/config"
)

// Connect creates a Redis client for the broker settings and pings it to
// verify the connection.
func Connect(ctx context.Context, cfg config.Broker) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping broker: %w", err)
	}

	return client, nil
}
