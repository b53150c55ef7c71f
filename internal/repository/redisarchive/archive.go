package redisarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/approvalbot/internal/domain"
	"github.com/xela07ax/approvalbot/internal/infra"
)

// Archive — write-through зеркало заявок в Redis с TTL.
// Источник правды остается в памяти процесса; архив дает ограниченную
// ретенцию (archive_ttl) и наблюдаемость снаружи. Плюс Pub/Sub трансляция
// принятых решений внешним потребителям.
type Archive struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Archive {
	return &Archive{
		rdb: rdb,
		ttl: ttl,
	}
}

// Save сохраняет снапшот заявки (создание и терминальный переход пишут
// одну и ту же запись — последний снапшот побеждает).
func (a *Archive) Save(ctx context.Context, req *domain.ApprovalRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("redisarchive: marshal approval: %w", err)
	}

	if err := a.rdb.Set(ctx, infra.GetApprovalKey(req.ID), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("redisarchive: save approval: %w", err)
	}
	return nil
}

// PublishDecision транслирует терминальный переход в канал решений.
// Формат сигнала "<id>:<status>" — как в остальных Pub/Sub каналах проекта.
func (a *Archive) PublishDecision(ctx context.Context, req *domain.ApprovalRequest) error {
	payload := fmt.Sprintf("%s:%s", req.ID, req.Status)
	if err := a.rdb.Publish(ctx, infra.RedisChanApprovalDecisions, payload).Err(); err != nil {
		return fmt.Errorf("redisarchive: publish decision: %w", err)
	}
	return nil
}
