package screen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/infra"
	"github.com/xela07ax/pocketsiem/internal/view"
)

type ConnectionSource interface {
	GetLiveConnections(ctx context.Context) ([]domain.NetworkConnection, error)
}

type BlockChecker interface {
	IsBlocked(ip string) bool
}

type CountryResolver interface {
	Country(ip string) string
}

// Monitor — экран Live Monitor: активные соединения и модалка алерта.
type Monitor struct {
	*Controller[view.MonitorView]
	Alerts *AlertDesk
}

type MonitorOption func(*monitorFetcher)

// WithBlocklist помечает соединения к заблокированным адресам.
func WithBlocklist(b BlockChecker) MonitorOption {
	return func(f *monitorFetcher) { f.blocked = b }
}

// WithGeo добавляет страну адреса назначения.
func WithGeo(r CountryResolver) MonitorOption {
	return func(f *monitorFetcher) { f.geo = r }
}

func NewMonitor(src ConnectionSource, alerts *AlertDesk, interval time.Duration, logger *zap.Logger, metrics *infra.Metrics, opts ...MonitorOption) *Monitor {
	f := &monitorFetcher{src: src}
	for _, opt := range opts {
		opt(f)
	}
	return &Monitor{
		Controller: NewController(NameMonitor, interval, f.fetch, logger, metrics),
		Alerts:     alerts,
	}
}

// Retry — кнопка повтора на баннере ошибки.
func (m *Monitor) Retry() bool {
	return m.Refresh()
}

type monitorFetcher struct {
	src     ConnectionSource
	blocked BlockChecker
	geo     CountryResolver
}

func (f *monitorFetcher) fetch(ctx context.Context) (view.MonitorView, error) {
	list, err := f.src.GetLiveConnections(ctx)
	if err != nil {
		return view.MonitorView{}, err
	}

	conns := view.MapConnections(list)
	for i := range conns {
		if f.blocked != nil {
			conns[i].Blocked = f.blocked.IsBlocked(conns[i].DestinationIP)
		}
		if f.geo != nil {
			conns[i].Country = f.geo.Country(conns[i].DestinationIP)
		}
	}
	return view.BuildMonitor(conns), nil
}
