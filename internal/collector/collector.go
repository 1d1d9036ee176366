package collector

import (
	"errors"
	"math"
)

// ErrUnavailable 数据源不可用（未运行、无权限或已退出）
var ErrUnavailable = errors.New("source unavailable")

var (
	// ErrNotFound 容器或系统服务不存在
	ErrNotFound = errors.New("not found")
	// ErrNotAllowed 服务不在允许控制的列表中
	ErrNotAllowed = errors.New("not in allowed list")
	// ErrPermissionDenied 权限不足，通常需要 root 或 sudo
	ErrPermissionDenied = errors.New("permission denied")
)

// round 保留 n 位小数
func round(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}

// percent used/total，保留两位小数，total 为 0 时返回 0
func percent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(used)/float64(total)*100, 2)
}
