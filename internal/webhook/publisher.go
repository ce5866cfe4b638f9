package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch/internal/models"
)

const (
	webhookQueueKey = "webhook_events"
)

// Типы событий жизненного цикла
const (
	EventIncidentCreated   = "incident.created"
	EventIncidentAccepted  = "incident.accepted"
	EventIncidentResolved  = "incident.resolved"
	EventIncidentCancelled = "incident.cancelled"
)

// WebhookEvent - событие жизненного цикла для внешней системы уведомлений
type WebhookEvent struct {
	Event       string                `json:"event"`
	IncidentID  uuid.UUID             `json:"incident_id"`
	Status      models.IncidentStatus `json:"status"`
	Severity    models.SeverityTier   `json:"severity"`
	ResponderID string                `json:"responder_id,omitempty"`
	Responders  []string              `json:"responders"`
	Timestamp   time.Time             `json:"timestamp"`
}

// NewWebhookEvent собирает событие из текущего состояния инцидента
func NewWebhookEvent(event string, incident *models.Incident) WebhookEvent {
	return WebhookEvent{
		Event:      event,
		IncidentID: incident.ID,
		Status:     incident.Status,
		Severity:   incident.Severity,
		Responders: incident.Responders,
		Timestamp:  time.Now().UTC(),
	}
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event WebhookEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в левую часть списка, воркер забирает справа
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// NopPublisher используется, когда Redis отключен
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, WebhookEvent) error {
	return nil
}
