package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Oniqq60/task_tracker/internal/anomaly"
	"github.com/Oniqq60/task_tracker/internal/auth"
	"github.com/Oniqq60/task_tracker/internal/cfg"
	"github.com/Oniqq60/task_tracker/internal/db"
	"github.com/Oniqq60/task_tracker/internal/forecast"
	"github.com/Oniqq60/task_tracker/internal/task"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// app - собранные зависимости процесса
type app struct {
	conf   cfg.Config
	logger *log.Logger

	db    *gorm.DB
	redis *redis.Client

	taskRepo    task.TaskRepository
	anomalyRepo anomaly.AnomalyRepository
	engine      anomaly.Engine
	anomalies   anomaly.AnomalyService
}

func newApp(ctx context.Context, conf cfg.Config, logger *log.Logger) (*app, error) {
	gdb, err := db.Open(conf.DSN())
	if err != nil {
		return nil, err
	}

	a := &app{conf: conf, logger: logger, db: gdb}

	var locker anomaly.Locker
	if conf.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		locker = anomaly.NewRedisLocker(a.redis, conf.LockTTL)
		logger.Printf("redis connected: %s", conf.RedisAddr)
	} else {
		locker = anomaly.NewLocalLocker()
		logger.Println("REDIS_ADDR not set: using in-process locks, logout disabled")
	}

	forecaster, err := forecast.NewClient(forecast.Options{
		BaseURL:           conf.ForecastURL,
		ForecastTimeout:   conf.ForecastTimeout,
		ActiveTimeTimeout: conf.ActiveTimeTimeout,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.taskRepo = task.NewRepository(gdb)
	a.anomalyRepo = anomaly.NewRepository(gdb)
	a.engine = anomaly.NewEngine(forecaster, a.taskRepo, a.anomalyRepo, locker, anomaly.EngineOptions{
		Threshold: conf.DeviationThreshold,
		Logger:    logger,
	})
	a.anomalies = anomaly.NewService(a.anomalyRepo, a.taskRepo, a.engine, anomaly.ServiceOptions{
		CheckDelay: conf.CheckAllDelay,
		Logger:     logger,
	})

	return a, nil
}

func (a *app) authService() (auth.AuthService, error) {
	tokens, err := auth.NewTokens(a.conf.JWTSecret, a.conf.JWTTTL)
	if err != nil {
		return nil, err
	}

	var blacklist auth.Blacklist
	if a.redis != nil {
		blacklist = auth.NewRedisBlacklist(a.redis)
	}

	admin := auth.Credentials{Username: a.conf.AdminUsername, Password: a.conf.AdminPassword}
	return auth.NewAuthService(tokens, admin, blacklist, a.logger), nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Printf("close redis: %v", err)
		}
	}
	if a.db != nil {
		if err := db.Close(a.db); err != nil {
			a.logger.Printf("close database: %v", err)
		}
	}
}
