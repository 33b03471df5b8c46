package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/infra"
	"github.com/xela07ax/pocketsiem/internal/threatapi"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

var (
	ErrAlreadyStarted = errors.New("screen controller already started")
	ErrStopped        = errors.New("screen controller stopped")
)

// State — то, что видит рендер экрана.
// HasData отличает "ошибка без данных" от "ошибка поверх последних хороших данных".
type State[T any] struct {
	Screen    string    `json:"screen"`
	Phase     Phase     `json:"phase"`
	Data      T         `json:"data"`
	HasData   bool      `json:"hasData"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Seq       uint64    `json:"seq"`
}

type FetchFunc[T any] func(ctx context.Context) (T, error)

// Controller — поллинг одного экрана: сразу при старте и затем каждые interval.
// Тики не сериализуются, запросы могут перекрываться. В состояние попадает только
// результат с номером новее последнего примененного, после Stop ничего не пишется.
type Controller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	logger   *zap.Logger
	metrics  *infra.Metrics

	mu      sync.Mutex
	state   State[T]
	started bool
	running bool
	issued  uint64
	applied uint64
	cancel  context.CancelFunc
	subs    []func(State[T])

	// Сериализует оповещения; снимок старее уже доставленного подписчикам не уходит
	notifyMu  sync.Mutex
	delivered bool
	lastSeq   uint64

	refresh chan struct{}
	wg      sync.WaitGroup
}

func NewController[T any](name string, interval time.Duration, fetch FetchFunc[T], logger *zap.Logger, metrics *infra.Metrics) *Controller[T] {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   logger.With(zap.String("screen", name)),
		metrics:  metrics,
		state:    State[T]{Screen: name, Phase: PhaseLoading},
		refresh:  make(chan struct{}, 1),
	}
}

func (c *Controller[T]) Name() string { return c.name }

// Start — экран стал активным. Контроллер одноразовый: после Stop заново не запускается.
func (c *Controller[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		if c.running {
			return ErrAlreadyStarted
		}
		return ErrStopped
	}
	if c.interval <= 0 {
		return errors.New("polling interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.started = true
	c.running = true
	c.cancel = cancel
	if !c.state.HasData {
		c.state.Phase = PhaseLoading
	}

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("screen polling started", zap.Duration("interval", c.interval))
	return nil
}

// Stop — экран закрыт. Таймер и контекст отменяются, поздние ответы отбрасываются.
// Stop не ждет завершения запросов, для этого есть Wait.
func (c *Controller[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	c.logger.Info("screen polling stopped")
}

// Wait блокируется, пока не завершатся цикл и все запущенные запросы.
func (c *Controller[T]) Wait() {
	c.wg.Wait()
}

// Refresh — ручной повтор. Если повтор уже в очереди, второй не ставится.
func (c *Controller[T]) Refresh() bool {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return false
	}

	select {
	case c.refresh <- struct{}{}:
	default:
	}
	return true
}

// Seed подставляет данные, полученные в обход поллинга (прогрев из Redis).
// Срабатывает только пока не применен ни один настоящий ответ.
func (c *Controller[T]) Seed(data T, at time.Time) bool {
	c.mu.Lock()
	if c.applied != 0 || c.state.HasData {
		c.mu.Unlock()
		return false
	}
	c.state.Data = data
	c.state.HasData = true
	c.state.Phase = PhaseReady
	c.state.UpdatedAt = at
	snapshot, subs := c.state, c.subscribers()
	c.mu.Unlock()

	c.notify(snapshot, subs)
	return true
}

func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe — fn вызывается на каждое примененное состояние, по порядку применения.
func (c *Controller[T]) Subscribe(fn func(State[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Controller[T]) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			// Родительский контекст закрыт - экран считается остановленным
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			return
		case <-ticker.C:
			c.spawn(ctx)
		case <-c.refresh:
			c.logger.Debug("manual refresh")
			c.spawn(ctx)
		}
	}
}

func (c *Controller[T]) spawn(ctx context.Context) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		data, err := c.fetch(ctx)
		c.apply(ctx, seq, data, err)
	}()
}

func (c *Controller[T]) apply(ctx context.Context, seq uint64, data T, err error) {
	c.mu.Lock()

	if !c.running || ctx.Err() != nil {
		c.mu.Unlock()
		c.metrics.StaleResponses.WithLabelValues(c.name).Inc()
		c.logger.Debug("response after stop discarded", zap.Uint64("seq", seq))
		return
	}
	if seq <= c.applied {
		c.mu.Unlock()
		c.metrics.StaleResponses.WithLabelValues(c.name).Inc()
		c.logger.Debug("stale response dropped", zap.Uint64("seq", seq), zap.Uint64("applied", c.applied))
		return
	}
	c.applied = seq

	c.state.Seq = seq
	if err != nil {
		// Последние хорошие данные остаются на экране под баннером
		c.state.Phase = PhaseError
		c.state.Error = threatapi.UserMessage(err)
		c.metrics.PollTotal.WithLabelValues(c.name, "error").Inc()
		c.logger.Warn("screen refresh failed",
			zap.Uint64("seq", seq),
			zap.Bool("has_data", c.state.HasData),
			zap.Error(err))
	} else {
		c.state.Phase = PhaseReady
		c.state.Data = data
		c.state.HasData = true
		c.state.Error = ""
		c.state.UpdatedAt = time.Now()
		c.metrics.PollTotal.WithLabelValues(c.name, "success").Inc()
	}
	snapshot, subs := c.state, c.subscribers()
	c.mu.Unlock()

	c.notify(snapshot, subs)
}

// subscribers вызывается под mu.
func (c *Controller[T]) subscribers() []func(State[T]) {
	return append([]func(State[T]){}, c.subs...)
}

func (c *Controller[T]) notify(s State[T], subs []func(State[T])) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if c.delivered && s.Seq <= c.lastSeq {
		return
	}
	c.delivered = true
	c.lastSeq = s.Seq

	for _, fn := range subs {
		fn(s)
	}
}
