package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rservant/indoor-golf-scheduler-sub005/config"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/metrics"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/database"
	applogger "github.com/rservant/indoor-golf-scheduler-sub005/pkg/logger"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/redis"
)

// env 一次命令执行所需的依赖
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	rdb    *redis.Client
	svc    *service.Service
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

// openEnv 连接数据库与 Redis 并装配服务；Redis 用于与在线服务共享重排锁
func openEnv() (*env, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，无法与在线服务互斥", zap.Error(err))
			rdb = nil
		}
	}

	repo := repository.NewRepository(db)
	locker := service.NewScheduleLocker(rdb, cfg.Scheduler.LockTTL, logger)
	svc := service.NewService(cfg, repo, locker, metrics.NewNop(), logger)

	return &env{cfg: cfg, logger: logger, db: db, rdb: rdb, svc: svc}, nil
}

func (e *env) Close() {
	if err := e.svc.Close(); err != nil {
		e.logger.Error("停止后台任务异常", zap.Error(err))
	}
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
	if e.rdb != nil {
		e.rdb.Close()
	}
	_ = e.logger.Sync()
}
