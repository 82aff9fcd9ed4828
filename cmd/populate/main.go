package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/engine"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/export"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/logger"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/persistence"
)

// 离线回填工具：跑完两阶段历史回填，把 K 线/成交/新闻导出到 badger 后退出。
func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "配置文件路径 (.yaml)")
		days       = flag.Int("days", 0, "回填天数（0 用配置值）")
		seed       = flag.Int64("seed", 0, "随机种子（0 用配置值）")
		outPath    = flag.String("out", "data/populate", "badger 导出目录")
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
	if *seed != 0 {
		cfg.Sim.Seed = *seed
	}

	if err := logger.InitDefault(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	svc, err := persistence.OpenBadger(*outPath)
	if err != nil {
		logrus.Errorf("打开导出存储失败: %v", err)
		os.Exit(1)
	}
	sink := export.NewSink(svc)

	sim, err := engine.NewSimulation(cfg, sink.Wrap(engine.Callbacks{}))
	if err != nil {
		logrus.Errorf("构建模拟器失败: %v", err)
		os.Exit(1)
	}

	if err := sim.Populate(*days); err != nil {
		logrus.Errorf("回填启动失败: %v", err)
		os.Exit(1)
	}

	start := time.Now()
	for sim.CurrentState() == engine.StatePopulating {
		done, total := sim.PopulateProgress()
		if total > 0 {
			logrus.Infof("回填进度: %d/%d (%.1f%%)", done, total,
				100*float64(done)/float64(total))
		}
		time.Sleep(2 * time.Second)
	}

	if sim.CurrentState() != engine.StateIdle {
		logrus.Error("回填未正常结束")
		os.Exit(1)
	}

	if err := sink.Close(); err != nil {
		logrus.Errorf("关闭导出存储失败: %v", err)
		os.Exit(1)
	}

	view := sim.StateSnapshot()
	logrus.Infof("✅ 回填完成: %d tick / %d 天, 耗时 %s, 导出到 %s",
		view.Tick, view.Day, time.Since(start).Round(time.Second), *outPath)
}
