package blocklist

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/infra"
)

// WarmupOutcome — чем закончился прогрев Redis. Память (L1) заполняется в любом случае.
type WarmupOutcome string

const (
	WarmupMemoryOnly    WarmupOutcome = "memory_only"     // Redis отключен
	WarmupSeeded        WarmupOutcome = "seeded"          // этот инстанс залил set
	WarmupLockHeld      WarmupOutcome = "lock_held"       // греет другой инстанс
	WarmupRedisNotEmpty WarmupOutcome = "redis_not_empty" // в Redis уже есть состояние
	WarmupNothingToSeed WarmupOutcome = "nothing_to_seed"
)

const warmupLockTTL = 30 * time.Second

// Warmup поднимает блоклист из журнала решений и заливает его в Redis, если set пуст.
// Redis заливает один инстанс под SetNX-блокировкой. Невалидные адреса из источника пропускаются.
func (m *Manager) Warmup(ctx context.Context, src Source) (WarmupOutcome, error) {
	raw, err := src.BlockedIPs(ctx)
	if err != nil {
		return "", fmt.Errorf("blocklist: warmup source: %w", err)
	}

	ips := make([]string, 0, len(raw))
	for _, ip := range raw {
		if !domain.IsValidIP(ip) {
			m.logger.Warn("skipping invalid ip from journal", zap.String("ip", ip))
			continue
		}
		ips = append(ips, ip)
	}
	m.markAll(ips)

	if m.rdb == nil {
		return WarmupMemoryOnly, nil
	}

	ok, err := m.rdb.SetNX(ctx, infra.RedisLockBlocklistWarmup, "processing", warmupLockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("blocklist: warmup lock: %w", err)
	}
	if !ok {
		return WarmupLockHeld, nil
	}

	count, err := m.rdb.SCard(ctx, infra.RedisKeyBlockedIPs).Result()
	if err != nil {
		// Размер неизвестен - греем, SAdd идемпотентен
		m.logger.Warn("could not check blocklist size, proceeding with warm-up", zap.Error(err))
		count = 0
	}
	if count > 0 {
		return WarmupRedisNotEmpty, nil
	}
	if len(ips) == 0 {
		return WarmupNothingToSeed, nil
	}

	members := make([]any, len(ips))
	for i, ip := range ips {
		members[i] = ip
	}
	if err := m.rdb.SAdd(ctx, infra.RedisKeyBlockedIPs, members...).Err(); err != nil {
		return "", fmt.Errorf("blocklist: warmup seed: %w", err)
	}
	m.logger.Info("blocklist seeded into redis from journal", zap.Int("count", len(ips)))
	return WarmupSeeded, nil
}
