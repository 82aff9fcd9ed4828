package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/api"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/engine"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/events"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/export"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/metrics"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/logger"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/persistence"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/shutdown"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// 读 .env（没有就用真实环境变量）
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", getenv("MARKETSIM_CONFIG", ""), "配置文件路径 (.yaml)")
		listenAddr = flag.String("listen", getenv("MARKETSIM_LISTEN", ""), "覆盖 API 监听地址")
		seedFlag   = flag.String("seed", getenv("MARKETSIM_SEED", ""), "覆盖随机种子")
		autoStart  = flag.Bool("auto-start", false, "启动后立即开始模拟")
	)
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}
	if *listenAddr != "" {
		cfg.API.Listen = *listenAddr
	}
	if *seedFlag != "" {
		seed, err := strconv.ParseInt(*seedFlag, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "种子无效: %s\n", *seedFlag)
			os.Exit(1)
		}
		cfg.Sim.Seed = seed
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	logrus.Info("🚀 启动商品市场模拟器...")

	hub := api.NewHub()
	cb := engine.Callbacks{
		OnTrade: func(t domain.Trade) {
			hub.Publish(events.Envelope{Type: events.TypeTrade, Payload: events.TradeExecuted{Trade: t}})
		},
		OnCandle: func(symbol, interval string, c domain.Candle) {
			hub.Publish(events.Envelope{Type: events.TypeCandle, Payload: events.CandleSealed{
				Symbol: symbol, Interval: interval, Candle: c}})
		},
		OnNews: func(ev domain.NewsEvent) {
			hub.Publish(events.Envelope{Type: events.TypeNews, Payload: events.NewsPublished{Event: ev}})
		},
		OnTick: func(ev events.TickCompleted) {
			hub.Publish(events.Envelope{Type: events.TypeTick, Payload: ev})
		},
	}

	var sink *export.Sink
	if cfg.Export.Enabled {
		svc, err := persistence.OpenBadger(cfg.Export.Path)
		if err != nil {
			logrus.Errorf("打开导出存储失败: %v", err)
			os.Exit(1)
		}
		sink = export.NewSink(svc)
		cb = sink.Wrap(cb)
		logrus.Infof("📦 导出已启用: %s", cfg.Export.Path)
	}

	sim, err := engine.NewSimulation(cfg, cb)
	if err != nil {
		logrus.Errorf("构建模拟器失败: %v", err)
		os.Exit(1)
	}

	srv := api.New(cfg.API, sim, hub)
	srv.Start()

	// 可选：expvar/pprof 调试端口（仅建议内网）
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	if addr := os.Getenv("MARKETSIM_PPROF_ADDR"); addr != "" {
		if _, err := metrics.StartAsync(rootCtx, addr); err != nil {
			logrus.Errorf("metrics/pprof 启动失败: %v", err)
		} else {
			logrus.Infof("📊 metrics/pprof 启用: %s", addr)
		}
	}

	if *autoStart || cfg.Sim.AutoStart {
		if err := sim.Start(); err != nil {
			logrus.Errorf("自动启动失败: %v", err)
		}
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
		st := sim.CurrentState()
		if st == engine.StateRunning || st == engine.StatePaused {
			_ = sim.Stop()
		}
	})
	mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
		_ = srv.Shutdown(ctx)
	})
	if sink != nil {
		mgr.OnShutdown(func(ctx context.Context, _ *sync.WaitGroup) {
			if err := sink.Close(); err != nil {
				logrus.Errorf("关闭导出存储失败: %v", err)
			}
		})
	}

	logrus.Infof("✅ 模拟器就绪 (seed=%d)，按 Ctrl+C 停止", sim.StateSnapshot().Seed)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigCh
	logrus.Info("收到停止信号，正在关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)

	logrus.Info("✅ 模拟器已停止")
}
