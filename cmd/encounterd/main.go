// Package main provides the encounter daemon: a demo host loop that runs one
// Hour-Glass encounter, regenerating sand in real time and reporting timer
// diagnostics until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/Noquela/Sands-of-Duat-sub008/internal/config"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/card"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/encounter"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/hourglass"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/timing"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/host"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/observability"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/scripting"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file; missing file uses defaults")
	cardsDir := flag.String("cards-dir", "content/cards", "path to card YAML definitions directory; empty = no cards")
	scriptsDir := flag.String("scripts-dir", "content/scripts/cards", "directory of Lua card-effect scripts; empty = scripting disabled")
	statsInterval := flag.Duration("stats-interval", 5*time.Second, "interval between timer diagnostic reports; 0 disables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	timer, err := timing.NewPrecisionTimer(timing.NewRealClock(), timing.Options{
		RegenerationRate: cfg.Timing.RegenerationRate,
		MaxDeltaClamp:    cfg.Timing.MaxDeltaClamp,
		TimingPrecision:  cfg.Timing.TimingPrecision,
		TimeScale:        cfg.Timing.DebugTimeScale,
	}, logger)
	if err != nil {
		logger.Fatal("creating precision timer", zap.Error(err))
	}

	glass, err := hourglass.New(cfg.Hourglass.MaxSand, timer, logger)
	if err != nil {
		logger.Fatal("creating hourglass", zap.Error(err))
	}
	glass.Set(cfg.Hourglass.StartingSand)
	glass.SetDynamicRegen(cfg.Hourglass.DynamicRegen)
	glass.SetOnChange(func(current int) {
		logger.Debug("sand changed", zap.Int("current", current), zap.Int("max", glass.MaxSand()))
	})

	cards := card.NewRegistry()
	if *cardsDir != "" {
		cards, err = card.LoadDirectory(*cardsDir)
		if err != nil {
			logger.Fatal("loading cards", zap.String("dir", *cardsDir), zap.Error(err))
		}
		logger.Info("cards loaded", zap.Int("count", cards.Len()), zap.String("dir", *cardsDir))
	}

	var scripts *scripting.Manager
	if *scriptsDir != "" {
		scripts = scripting.NewManager(logger)
		if err := scripts.Load(*scriptsDir, 0); err != nil {
			logger.Fatal("loading card scripts", zap.String("dir", *scriptsDir), zap.Error(err))
		}
		defer scripts.Close()
	}

	enc, err := encounter.New(glass, cards, scripts, cfg.Encounter.FrameInterval, logger)
	if err != nil {
		logger.Fatal("creating encounter", zap.Error(err))
	}
	enc.StatsInterval = *statsInterval

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	lc := host.NewLifecycle(logger)
	lc.Add("encounter", &host.FuncService{
		StartFn: func() error {
			if err := enc.Run(runCtx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
		StopFn: stop,
	})

	if err := lc.Run(context.Background()); err != nil {
		logger.Fatal("runtime error", zap.Error(err))
	}
}
