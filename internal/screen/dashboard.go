package screen

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/infra"
	"github.com/xela07ax/pocketsiem/internal/view"
)

const (
	NameDashboard = "dashboard"
	NameMonitor   = "monitor"
)

type DashboardSource interface {
	GetDeviceStats(ctx context.Context) (domain.DeviceStats, error)
	GetAttackSurface(ctx context.Context) ([]domain.AttackSurfacePoint, error)
}

// Dashboard — экран со статистикой устройства и графиком attack surface.
type Dashboard struct {
	*Controller[view.DashboardView]
}

func NewDashboard(src DashboardSource, interval time.Duration, logger *zap.Logger, metrics *infra.Metrics) *Dashboard {
	return &Dashboard{
		Controller: NewController(NameDashboard, interval, fetchDashboard(src), logger, metrics),
	}
}

// Оба запроса идут параллельно; ошибка любого из них — ошибка всего тика,
// частичного обновления экрана нет.
func fetchDashboard(src DashboardSource) FetchFunc[view.DashboardView] {
	return func(ctx context.Context) (view.DashboardView, error) {
		var (
			stats   domain.DeviceStats
			surface []domain.AttackSurfacePoint
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			stats, err = src.GetDeviceStats(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			surface, err = src.GetAttackSurface(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return view.DashboardView{}, err
		}

		return view.BuildDashboard(stats, surface), nil
	}
}
