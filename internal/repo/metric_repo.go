package repo

import (
	"context"
	"time"

	"github.com/dushixiang/homedash/internal/models"
	"gorm.io/gorm"
)

// MetricRepo 指标仓库，三类指标只追加写入，仅支持按时间删除
type MetricRepo struct {
	db *gorm.DB
}

func NewMetricRepo(db *gorm.DB) *MetricRepo {
	return &MetricRepo{
		db: db,
	}
}

// CreateSystemMetric 写入一条系统指标
func (r *MetricRepo) CreateSystemMetric(ctx context.Context, metric *models.SystemMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// CreateContainerMetric 写入一条容器指标
func (r *MetricRepo) CreateContainerMetric(ctx context.Context, metric *models.ContainerMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// CreateModelServerMetric 写入一条模型服务指标
func (r *MetricRepo) CreateModelServerMetric(ctx context.Context, metric *models.ModelServerMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// DeleteSystemMetricsBefore 删除早于 cutoff 的系统指标，返回删除行数
func (r *MetricRepo) DeleteSystemMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteBefore(ctx, &models.SystemMetric{}, cutoff)
}

// DeleteContainerMetricsBefore 删除早于 cutoff 的容器指标
func (r *MetricRepo) DeleteContainerMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteBefore(ctx, &models.ContainerMetric{}, cutoff)
}

// DeleteModelServerMetricsBefore 删除早于 cutoff 的模型服务指标
func (r *MetricRepo) DeleteModelServerMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteBefore(ctx, &models.ModelServerMetric{}, cutoff)
}

// deleteBefore 严格小于 cutoff 的记录才会被删除
func (r *MetricRepo) deleteBefore(ctx context.Context, model any, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindSystemMetricsSince 查询 since 之后的系统指标（按时间倒序）
func (r *MetricRepo) FindSystemMetricsSince(ctx context.Context, since time.Time, limit int) ([]models.SystemMetric, error) {
	var items []models.SystemMetric
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// FindContainerMetricsSince 查询 since 之后的容器指标，containerID 为空时不过滤
func (r *MetricRepo) FindContainerMetricsSince(ctx context.Context, since time.Time, containerID string, limit int) ([]models.ContainerMetric, error) {
	var items []models.ContainerMetric
	query := r.db.WithContext(ctx).Where("timestamp >= ?", since)
	if containerID != "" {
		query = query.Where("container_id = ?", containerID)
	}
	err := query.Order("timestamp DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// FindModelServerMetricsSince 查询 since 之后的模型服务指标
func (r *MetricRepo) FindModelServerMetricsSince(ctx context.Context, since time.Time, limit int) ([]models.ModelServerMetric, error) {
	var items []models.ModelServerMetric
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// CountSystemMetrics 统计系统指标条数
func (r *MetricRepo) CountSystemMetrics(ctx context.Context) (int64, error) {
	return r.count(ctx, &models.SystemMetric{})
}

// CountContainerMetrics 统计容器指标条数
func (r *MetricRepo) CountContainerMetrics(ctx context.Context) (int64, error) {
	return r.count(ctx, &models.ContainerMetric{})
}

// CountModelServerMetrics 统计模型服务指标条数
func (r *MetricRepo) CountModelServerMetrics(ctx context.Context) (int64, error) {
	return r.count(ctx, &models.ModelServerMetric{})
}

func (r *MetricRepo) count(ctx context.Context, model any) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(model).Count(&total).Error
	return total, err
}
