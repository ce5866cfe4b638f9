package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// OffersChannel - канал Redis pub/sub для предложений между узлами
const OffersChannel = "dispatch:offers"

// RedisRelay пересылает предложения через Redis pub/sub
type RedisRelay struct {
	redisClient *redis.Client
	channel     string
	logger      *logrus.Logger
}

func NewRedisRelay(client *redis.Client, logger *logrus.Logger) *RedisRelay {
	return &RedisRelay{
		redisClient: client,
		channel:     OffersChannel,
		logger:      logger,
	}
}

// Publish отправляет предложение в канал
func (r *RedisRelay) Publish(ctx context.Context, msg RelayMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	if err := r.redisClient.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	return nil
}

// Run слушает канал и передает чужие предложения в хаб до отмены ctx
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) {
	sub := r.redisClient.Subscribe(ctx, r.channel)
	defer sub.Close()

	r.logger.WithField("channel", r.channel).Info("Offer relay started")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Offer relay stopped")
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg, ok := decodeRelayed([]byte(m.Payload), hub.NodeID())
			if !ok {
				continue
			}
			hub.ReceiveRelayed(msg)
		}
	}
}

// decodeRelayed разбирает сообщение и отбрасывает собственные сообщения узла
func decodeRelayed(payload []byte, nodeID string) (RelayMessage, bool) {
	var msg RelayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return RelayMessage{}, false
	}
	if msg.Node == "" || msg.Node == nodeID {
		return RelayMessage{}, false
	}
	return msg, true
}
