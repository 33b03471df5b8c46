package blocklist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/broadcast"
	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/infra"
)

var ErrInvalidIP = errors.New("blocklist: invalid ip address")

// Source — источник истины для прогрева (журнал решений в Postgres).
type Source interface {
	BlockedIPs(ctx context.Context) ([]string, error)
}

// Manager хранит заблокированные пользователем адреса.
// L1 — мапа в памяти (читается на каждом тике монитора), L2 — set в Redis,
// изменения рассылаются другим инстансам сигналами "ip:on" / "ip:off".
// Без Redis работает только L1.
type Manager struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
	rdb     redis.UniversalClient
	logger  *zap.Logger
}

func NewManager(rdb redis.UniversalClient, logger *zap.Logger) *Manager {
	return &Manager{
		blocked: make(map[string]struct{}),
		rdb:     rdb,
		logger:  logger.With(zap.String("mod", "blocklist")),
	}
}

// Init загружает текущее состояние из Redis при старте и после переподключения.
func (m *Manager) Init(ctx context.Context) error {
	if m.rdb == nil {
		return nil
	}
	ips, err := m.rdb.SMembers(ctx, infra.RedisKeyBlockedIPs).Result()
	if err != nil {
		return fmt.Errorf("blocklist: load: %w", err)
	}

	m.mu.Lock()
	for _, ip := range ips {
		m.blocked[ip] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) Block(ctx context.Context, ip string) error {
	return m.set(ctx, ip, true)
}

func (m *Manager) Unblock(ctx context.Context, ip string) error {
	return m.set(ctx, ip, false)
}

func (m *Manager) IsBlocked(ip string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocked[ip]
	return ok
}

// List — отсортированный список заблокированных адресов.
func (m *Manager) List() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.blocked))
	for ip := range m.blocked {
		out = append(out, ip)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Listen применяет сигналы других инстансов. Блокируется до отмены ctx.
func (m *Manager) Listen(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	broadcast.ListenResilient(ctx, m.rdb, m.logger, infra.RedisChanBlocklist, m.Init, func(payload string) {
		ip, blocked, err := ParseSignal(payload)
		if err != nil {
			m.logger.Error("invalid signal format", zap.String("payload", payload), zap.Error(err))
			return
		}
		m.apply(ip, blocked)
	})
}

func (m *Manager) set(ctx context.Context, ip string, blocked bool) error {
	if !domain.IsValidIP(ip) {
		return ErrInvalidIP
	}

	// L1 меняется сразу: решение пользователя видно на следующем тике даже без Redis
	m.apply(ip, blocked)

	if m.rdb == nil {
		return nil
	}

	pipe := m.rdb.TxPipeline()
	if blocked {
		pipe.SAdd(ctx, infra.RedisKeyBlockedIPs, ip)
	} else {
		pipe.SRem(ctx, infra.RedisKeyBlockedIPs, ip)
	}
	pipe.Publish(ctx, infra.RedisChanBlocklist, FormatSignal(ip, blocked))
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Error("failed to sync blocklist to redis", zap.String("ip", ip), zap.Error(err))
		return fmt.Errorf("blocklist: sync %s: %w", ip, err)
	}

	m.logger.Info("blocklist updated", zap.String("ip", ip), zap.Bool("blocked", blocked))
	return nil
}

func (m *Manager) apply(ip string, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if blocked {
		m.blocked[ip] = struct{}{}
	} else {
		delete(m.blocked, ip)
	}
}

func (m *Manager) markAll(ips []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ip := range ips {
		m.blocked[ip] = struct{}{}
	}
}

// FormatSignal — "ip:on" / "ip:off".
func FormatSignal(ip string, blocked bool) string {
	if blocked {
		return ip + ":on"
	}
	return ip + ":off"
}

// ParseSignal разбирает сигнал. Режется по последнему ':', потому что в IPv6 двоеточий много.
func ParseSignal(payload string) (string, bool, error) {
	i := strings.LastIndex(payload, ":")
	if i <= 0 || i == len(payload)-1 {
		return "", false, fmt.Errorf("malformed signal %q", payload)
	}
	ip, status := payload[:i], payload[i+1:]
	if !domain.IsValidIP(ip) {
		return "", false, fmt.Errorf("bad ip in signal %q", payload)
	}
	switch status {
	case "on", "true":
		return ip, true, nil
	case "off", "false":
		return ip, false, nil
	default:
		return "", false, fmt.Errorf("unknown status %q", status)
	}
}
