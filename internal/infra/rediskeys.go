package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных клиента в Redis
	RedisNamespace = "pocketsiem"
)

// Ключи состояния
const (
	RedisKeyBlockedIPs   = RedisNamespace + ":blocklist:ips"
	RedisKeyScreenPrefix = RedisNamespace + ":screens:"
)

// Ключи распределенных блокировок
const (
	RedisLockBlocklistWarmup = RedisNamespace + ":lock:blocklist_warmup"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanBlocklist - сигналы "ip:on" / "ip:off" от других инстансов.
	RedisChanBlocklist = RedisNamespace + ":blocklist:signal"
	// RedisChanRefresh - внешний запрос внеочередного обновления экрана (payload = имя экрана).
	RedisChanRefresh = RedisNamespace + ":screens:refresh"
)

// ScreenSnapshotKey ключ последнего успешного состояния экрана.
func ScreenSnapshotKey(screen string) string {
	return fmt.Sprintf("%s%s:last", RedisKeyScreenPrefix, screen)
}

// ScreenChannel канал, в который транслируются состояния экрана.
func ScreenChannel(screen string) string {
	return RedisKeyScreenPrefix + screen
}
