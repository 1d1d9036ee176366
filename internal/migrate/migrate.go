package migrate

import (
	"github.com/dushixiang/homedash/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 创建或更新指标表结构
func Migrate(logger *zap.Logger, db *gorm.DB) error {
	logger.Info("开始执行数据库迁移")

	migrator := db.Migrator()
	for _, model := range models.All() {
		if err := migrator.AutoMigrate(model); err != nil {
			logger.Error("迁移数据表失败", zap.Error(err))
			return err
		}
	}

	// 按容器查询历史时使用
	if !migrator.HasIndex(&models.ContainerMetric{}, "idx_container_id_ts") {
		if err := db.Exec("CREATE INDEX idx_container_id_ts ON container_metrics (container_id, timestamp)").Error; err != nil {
			logger.Error("创建索引失败", zap.String("index", "idx_container_id_ts"), zap.Error(err))
			return err
		}
	}

	logger.Info("数据库迁移完成")
	return nil
}
