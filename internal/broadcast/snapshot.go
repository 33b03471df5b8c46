package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/infra"
)

// Snapshot — последнее успешное состояние экрана в Redis.
type Snapshot struct {
	Screen      string          `json:"screen"`
	PublishedAt time.Time       `json:"published_at"`
	Data        json.RawMessage `json:"data"`
}

// Publisher пишет последнее хорошее состояние экрана в ключ с TTL и рассылает его в канал экрана.
// С nil клиентом Redis все операции — no-op.
type Publisher struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewPublisher(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Publisher {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Publisher{rdb: rdb, ttl: ttl, logger: logger.With(zap.String("mod", "broadcast"))}
}

func (p *Publisher) Enabled() bool { return p != nil && p.rdb != nil }

func (p *Publisher) Publish(ctx context.Context, screen string, data any) error {
	if !p.Enabled() {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %w", screen, err)
	}
	payload, err := json.Marshal(Snapshot{Screen: screen, PublishedAt: time.Now().UTC(), Data: raw})
	if err != nil {
		return fmt.Errorf("broadcast: marshal snapshot: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, infra.ScreenSnapshotKey(screen), payload, p.ttl)
	pipe.Publish(ctx, infra.ScreenChannel(screen), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broadcast: publish %s: %w", screen, err)
	}
	return nil
}

// Load читает последний снапшот экрана в out. false — снапшота нет (или Redis отключен).
func (p *Publisher) Load(ctx context.Context, screen string, out any) (time.Time, bool, error) {
	if !p.Enabled() {
		return time.Time{}, false, nil
	}

	raw, err := p.rdb.Get(ctx, infra.ScreenSnapshotKey(screen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("broadcast: load %s: %w", screen, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return time.Time{}, false, fmt.Errorf("broadcast: decode %s: %w", screen, err)
	}
	if err := json.Unmarshal(snap.Data, out); err != nil {
		return time.Time{}, false, fmt.Errorf("broadcast: decode %s data: %w", screen, err)
	}
	return snap.PublishedAt, true, nil
}

// RequestRefresh просит все инстансы внеочередно обновить экран.
func (p *Publisher) RequestRefresh(ctx context.Context, screen string) error {
	if !p.Enabled() {
		return nil
	}
	return p.rdb.Publish(ctx, infra.RedisChanRefresh, screen).Err()
}

// ListenRefresh слушает внешние запросы обновления и передает имя экрана в onRefresh.
func (p *Publisher) ListenRefresh(ctx context.Context, onRefresh func(screen string)) {
	if !p.Enabled() {
		return
	}
	ListenResilient(ctx, p.rdb, p.logger, infra.RedisChanRefresh, nil, func(payload string) {
		if payload == "" {
			p.logger.Warn("empty refresh signal")
			return
		}
		onRefresh(payload)
	})
}
