package journal

/*
Журнал решений по алертам угроз.

Record не блокирует вызывающего: решения уходят в буферизованный канал,
воркер копит их пачками и пишет в Storage по размеру пачки или по таймеру.
При переполнении буфера решение не теряется бесследно: оно уходит в лог.
Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/infra"
)

// Storage определяет, куда физически пишутся решения
type Storage interface {
	WriteBatch(ctx context.Context, decisions []Decision) error
}

type Recorder interface {
	Record(d Decision) bool
}

type Journal struct {
	ch         chan Decision
	repo       Storage
	batchSize  int
	flushEvery time.Duration
	logger     *zap.Logger
	metrics    *infra.Metrics
	wg         sync.WaitGroup

	// closeMu защищает отправку в канал от гонки с close в Stop
	closeMu sync.RWMutex
	closed  bool
}

func New(repo Storage, cfg infra.JournalConfig, logger *zap.Logger, metrics *infra.Metrics) *Journal {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Journal{
		ch:         make(chan Decision, cfg.BufferSize),
		repo:       repo,
		batchSize:  cfg.BatchSize,
		flushEvery: cfg.FlushInterval,
		logger:     logger.With(zap.String("mod", "journal")),
		metrics:    metrics,
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop запирает вход и ждет, пока воркер допишет остаток.
func (j *Journal) Stop() {
	j.closeMu.Lock()
	if j.closed {
		j.closeMu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	j.closeMu.Unlock()

	j.logger.Info("stopping journal: flushing buffer...")
	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

// Record ставит решение в очередь. false — решение не принято в буфер.
func (j *Journal) Record(d Decision) bool {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}

	j.closeMu.RLock()
	defer j.closeMu.RUnlock()

	if j.closed {
		j.logger.Warn("decision dropped: journal is stopping", zap.String("id", d.ID))
		return false
	}

	select {
	case j.ch <- d:
		j.metrics.JournalBufferFill.Set(float64(len(j.ch)))
		return true
	default:
		// Load shedding: решение остается хотя бы в логе
		j.logger.Error("journal_buffer_overflow",
			zap.String("id", d.ID),
			zap.String("alert_id", d.AlertID),
			zap.String("ip", d.IP),
			zap.String("action", string(d.Action)))
		return false
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Decision, 0, j.batchSize)
	ticker := time.NewTicker(j.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст к моменту финального flush может быть закрыт
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := j.repo.WriteBatch(ctx, batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		j.metrics.JournalBufferFill.Set(float64(len(j.ch)))
	}

	for {
		select {
		case d, ok := <-j.ch:
			if !ok {
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, d)
			if len(batch) >= j.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
