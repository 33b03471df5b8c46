package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/blocklist"
	"github.com/xela07ax/pocketsiem/internal/broadcast"
	"github.com/xela07ax/pocketsiem/internal/console/handler"
	"github.com/xela07ax/pocketsiem/internal/console/server"
	"github.com/xela07ax/pocketsiem/internal/geo"
	"github.com/xela07ax/pocketsiem/internal/infra"
	"github.com/xela07ax/pocketsiem/internal/journal"
	"github.com/xela07ax/pocketsiem/internal/repository/postgres"
	"github.com/xela07ax/pocketsiem/internal/screen"
	"github.com/xela07ax/pocketsiem/internal/threatapi"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.API.Key == "" {
		logger.Warn("api key is empty, backend will most likely reject requests")
	}

	// Контекст для фоновых горутин: cancel() при SIGTERM остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// 2. Опциональная инфраструктура: Redis, Postgres, GeoIP
	rdb := connectRedis(appCtx, cfg.Redis, logger)

	var (
		storage journal.Storage = journal.NewLogStorage(logger)
		history handler.DecisionHistory
		repo    *postgres.DecisionRepo
	)
	if cfg.Database.URL != "" {
		repo, err = postgres.NewDecisionRepo(cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal("database init failed", zap.Error(err))
		}
		ctx, dbCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := repo.Ping(ctx); err != nil {
			logger.Fatal("database unreachable", zap.Error(err))
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("database schema", zap.Error(err))
		}
		dbCancel()
		storage, history = repo, repo
	}

	geoResolver, err := geo.NewResolver(cfg.GeoIP.DatabasePath, logger)
	if err != nil {
		logger.Fatal("geoip init failed", zap.Error(err))
	}
	defer func() { _ = geoResolver.Close() }()

	// 3. Клиент backend
	client := threatapi.NewClient(cfg.API, logger, metrics)

	// 4. Блоклист: прогрев из журнала (если есть БД) или из Redis, затем подписка на сигналы
	bl := blocklist.NewManager(rdb, logger)
	if repo != nil {
		outcome, err := bl.Warmup(appCtx, repo)
		if err != nil {
			logger.Warn("blocklist warm-up failed", zap.Error(err))
		} else {
			logger.Info("blocklist warmed up", zap.String("outcome", string(outcome)), zap.Int("blocked", len(bl.List())))
		}
	} else if err := bl.Init(appCtx); err != nil {
		logger.Warn("blocklist init failed", zap.Error(err))
	}
	go bl.Listen(appCtx)

	decisions := journal.New(storage, cfg.Journal, logger, metrics)
	decisions.Start()

	deviceID := cfg.Device.ID
	if deviceID == "" {
		deviceID = uuid.NewString()
		logger.Info("device.id is not set, generated for this session", zap.String("device_id", deviceID))
	}

	// 5. Экраны
	desk := screen.NewAlertDesk(bl, client, decisions, deviceID, logger)
	dashboard := screen.NewDashboard(client, cfg.Polling.Dashboard, logger, metrics)
	monitor := screen.NewMonitor(client, desk, cfg.Polling.Monitor, logger, metrics,
		screen.WithBlocklist(bl),
		screen.WithGeo(geoResolver),
	)

	pub := broadcast.NewPublisher(rdb, cfg.Redis.SnapshotTTL, logger)
	warmAndPublish(appCtx, pub, dashboard.Controller, logger)
	warmAndPublish(appCtx, pub, monitor.Controller, logger)

	go pub.ListenRefresh(appCtx, func(name string) {
		switch name {
		case screen.NameDashboard:
			dashboard.Refresh()
		case screen.NameMonitor:
			monitor.Refresh()
		default:
			logger.Warn("refresh requested for unknown screen", zap.String("screen", name))
		}
	})

	if err := dashboard.Start(appCtx); err != nil {
		logger.Fatal("dashboard start failed", zap.Error(err))
	}
	if err := monitor.Start(appCtx); err != nil {
		logger.Fatal("monitor start failed", zap.Error(err))
	}

	// 6. HTTP API для рендера
	viewSrv := server.NewViewServer(logger, reg,
		handler.NewScreenHandler(dashboard, monitor),
		handler.NewAlertHandler(desk, bl, history, logger),
		handler.NewThreatHandler(client, deviceID, logger),
	)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      viewSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("view API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("pocketsiem stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	dashboard.Stop()
	monitor.Stop()
	cancel()
	dashboard.Wait()
	monitor.Wait()

	decisions.Stop()
	if repo != nil {
		_ = repo.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("pocketsiem exited properly")
}

// connectRedis возвращает nil, если Redis не настроен или недоступен: клиент работает и без него.
func connectRedis(ctx context.Context, cfg infra.RedisConfig, logger *zap.Logger) redis.UniversalClient {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, running without snapshots and shared blocklist",
			zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// warmAndPublish показывает последний снапшот из Redis до первого ответа backend
// и дальше публикует каждое успешное состояние экрана.
func warmAndPublish[T any](ctx context.Context, pub *broadcast.Publisher, c *screen.Controller[T], logger *zap.Logger) {
	if !pub.Enabled() {
		return
	}

	var data T
	at, ok, err := pub.Load(ctx, c.Name(), &data)
	switch {
	case err != nil:
		logger.Warn("snapshot warm-up failed", zap.String("screen", c.Name()), zap.Error(err))
	case ok:
		c.Seed(data, at)
		logger.Info("screen warmed up from snapshot", zap.String("screen", c.Name()), zap.Time("published_at", at))
	}

	c.Subscribe(func(s screen.State[T]) {
		// Seq 0 - это сам прогрев, публиковать его обратно незачем
		if s.Phase != screen.PhaseReady || s.Seq == 0 {
			return
		}
		pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pub.Publish(pubCtx, c.Name(), s.Data); err != nil {
			logger.Warn("snapshot publish failed", zap.String("screen", c.Name()), zap.Error(err))
		}
	})
}
