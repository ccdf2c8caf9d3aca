package di

import (
	"os"
	"time"

	"github.com/google/wire"

	"github.com/sadopc/flowbank/internal/config"
	"github.com/sadopc/flowbank/internal/engine"
	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/reward"
	"github.com/sadopc/flowbank/internal/store"
)

// App is everything main needs after bootstrap.
type App struct {
	Config *config.AppConfig
	Log    logger.Logger
	Engine *engine.Engine
}

func NewApp(conf *config.AppConfig, log logger.Logger, e *engine.Engine) *App {
	return &App{Config: conf, Log: log, Engine: e}
}

func ProvideLogger(conf *config.AppConfig) (logger.Logger, func(), error) {
	log, err := logger.New(logger.Options{
		Level: conf.Logger.Level,
		Dir:   conf.Logger.Dir,
		Mode:  os.FileMode(conf.Logger.Mode),
	})
	if err != nil {
		return nil, nil, err
	}
	return log, log.Close, nil
}

func ProvideStore(conf *config.AppConfig, log logger.Logger) (*store.Store, func(), error) {
	s, err := store.New(conf.Database.Path, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			log.Errorf(logger.TypeStore, "close database: %v", err)
		}
	}
	return s, cleanup, nil
}

func ProvideEngineOptions(conf *config.AppConfig) engine.Options {
	return engine.Options{
		Cadence: reward.Cadence{
			Slow:          conf.Generator.SlowCadence,
			Fast:          conf.Generator.FastCadence,
			FastThreshold: conf.Generator.FastThreshold,
		},
		ArchiveMaxAgeDays: conf.Archive.MaxAgeDays,
		Now:               time.Now,
		Location:          time.Local,
	}
}

var ProviderSet = wire.NewSet(
	config.Load,
	ProvideLogger,
	ProvideStore,
	ProvideEngineOptions,
	engine.New,
	NewApp,
)
