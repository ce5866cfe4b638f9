package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/service"
)

// IncidentCache - кеш инцидентов в Redis
type IncidentCache struct {
	redisClient redis.Cmdable
	ttl         time.Duration
}

func NewIncidentCache(redisClient redis.Cmdable, ttl time.Duration) service.IncidentCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IncidentCache{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

// setNewerScript пишет инцидент, если в кеше нет более новой версии
var setNewerScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// setAbsentScript заполняет кеш только если ключа еще нет
var setAbsentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

func incidentKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s", id.String())
}

func incidentVersionKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s:version", id.String())
}

// GetIncidentFromCache пытается получить инцидент из Redis, nil при промахе
func (c *IncidentCache) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	val, err := c.redisClient.Get(ctx, incidentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache записывает состояние после изменения. Версия - updated_at,
// запись старше уже закешированной отбрасывается.
func (c *IncidentCache) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	if _, err := c.run(ctx, setNewerScript, incident); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// SetIncidentCacheIfAbsent заполняет кеш после промаха, не перетирая свежую запись
func (c *IncidentCache) SetIncidentCacheIfAbsent(ctx context.Context, incident *models.Incident) (bool, error) {
	stored, err := c.run(ctx, setAbsentScript, incident)
	if err != nil {
		return false, fmt.Errorf("failed to fill incident cache: %w", err)
	}
	return stored, nil
}

func (c *IncidentCache) run(ctx context.Context, script *redis.Script, incident *models.Incident) (bool, error) {
	val, err := json.Marshal(incident)
	if err != nil {
		return false, fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	keys := []string{incidentKey(incident.ID), incidentVersionKey(incident.ID)}
	n, err := script.Run(ctx, c.redisClient, keys, val, incident.UpdatedAt.UnixMicro(), c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InvalidateIncidentCache удаляет инцидент из Redis кэша
func (c *IncidentCache) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	if err := c.redisClient.Del(ctx, incidentKey(id), incidentVersionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}
