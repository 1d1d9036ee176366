package database

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dushixiang/homedash/internal/config"
	"github.com/glebarez/sqlite"
	"github.com/jpillora/backoff"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlite 参数：WAL 模式允许读写并发，busy_timeout 避免清理与写入互相报 SQLITE_BUSY
const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Open 打开数据库，连接失败时按指数退避重试
func Open(ctx context.Context, cfg config.DatabaseConfig, fs afero.Fs, logger *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg, fs)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		db, err := connect(dialector, gormCfg, cfg.Type)
		if err == nil {
			logger.Info("数据库连接成功", zap.String("type", cfg.Type))
			return db, nil
		}
		if int(b.Attempt()) >= cfg.MaxRetries {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		wait := b.Duration()
		logger.Warn("连接数据库失败，稍后重试",
			zap.Error(err),
			zap.Float64("attempt", b.Attempt()),
			zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func dialectorFor(cfg config.DatabaseConfig, fs afero.Fs) (gorm.Dialector, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path != ":memory:" {
			if err := fs.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, fmt.Errorf("创建数据目录失败: %w", err)
			}
		}
		return sqlite.Open(cfg.Path + sqlitePragmas), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", cfg.Type)
	}
}

func connect(dialector gorm.Dialector, gormCfg *gorm.Config, dbType string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbType == "sqlite" {
		// sqlite 只允许一个写连接
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close 关闭底层连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连通性
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
