package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных бота в Redis
	RedisNamespace = "apbot"
)

// Ключи записей (архив заявок с TTL)
const (
	RedisKeyApprovalPrefix = RedisNamespace + ":approvals:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanApprovalDecisions — трансляция принятых решений внешним потребителям.
	// Формат сообщения: "<request_id>:<APPROVED|REJECTED>"
	RedisChanApprovalDecisions = RedisNamespace + ":approvals:decisions"
)

// GetApprovalKey возвращает ключ архивной записи заявки
func GetApprovalKey(id string) string {
	return fmt.Sprintf("%s%s", RedisKeyApprovalPrefix, id)
}
