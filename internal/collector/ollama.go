package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/homedash/internal/protocol"
	"github.com/sourcegraph/conc"
)

// OllamaCollector 模型服务(Ollama)采集器
type OllamaCollector struct {
	host       string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOllamaCollector 创建 Ollama 采集器，每个请求都受 timeout 限制
func NewOllamaCollector(host string, timeout time.Duration) *OllamaCollector {
	return &OllamaCollector{
		host:    strings.TrimRight(host, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

type versionResponse struct {
	Version string `json:"version"`
}

type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		ModifiedAt time.Time `json:"modified_at"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest"`
		Details    struct {
			Format            string `json:"format"`
			Family            string `json:"family"`
			ParameterSize     string `json:"parameter_size"`
			QuantizationLevel string `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

type psResponse struct {
	Models []struct {
		Name      string    `json:"name"`
		Model     string    `json:"model"`
		Size      int64     `json:"size"`
		Digest    string    `json:"digest"`
		ExpiresAt time.Time `json:"expires_at"`
		SizeVRAM  int64     `json:"size_vram"`
	} `json:"models"`
}

// Available /api/version 返回 2xx 即认为可用
func (c *OllamaCollector) Available(ctx context.Context) bool {
	var v versionResponse
	return c.getJSON(ctx, "/api/version", &v) == nil
}

// Status 采集模型服务状态；服务不可达时返回 Running=false 的快照而不是错误
func (c *OllamaCollector) Status(ctx context.Context) (*protocol.ModelServerSnapshot, error) {
	now := time.Now()

	var version versionResponse
	if err := c.getJSON(ctx, "/api/version", &version); err != nil {
		return protocol.UnavailableModelServer(now, err.Error()), nil
	}

	var (
		tags     tagsResponse
		ps       psResponse
		tagsErr  error
		psErr    error
		requests conc.WaitGroup
	)
	requests.Go(func() { tagsErr = c.getJSON(ctx, "/api/tags", &tags) })
	requests.Go(func() { psErr = c.getJSON(ctx, "/api/ps", &ps) })
	requests.Wait()

	snapshot := &protocol.ModelServerSnapshot{
		Timestamp: now,
		Running:   true,
		Version:   version.Version,
	}
	// 单个接口失败时按空列表处理
	if tagsErr == nil {
		for _, m := range tags.Models {
			snapshot.Models = append(snapshot.Models, protocol.ModelInfo{
				Name:              m.Name,
				ModifiedAt:        m.ModifiedAt,
				Size:              m.Size,
				Digest:            m.Digest,
				Format:            orUnknown(m.Details.Format),
				Family:            orUnknown(m.Details.Family),
				ParameterSize:     orUnknown(m.Details.ParameterSize),
				QuantizationLevel: orUnknown(m.Details.QuantizationLevel),
			})
		}
	}
	if psErr == nil {
		for _, m := range ps.Models {
			snapshot.RunningModels = append(snapshot.RunningModels, protocol.RunningModel{
				Name:      m.Name,
				Model:     m.Model,
				Size:      m.Size,
				Digest:    m.Digest,
				ExpiresAt: m.ExpiresAt,
				SizeVRAM:  m.SizeVRAM,
			})
		}
	}
	snapshot.ModelCount = len(snapshot.Models)
	snapshot.ActiveInferences = len(snapshot.RunningModels)
	return snapshot, nil
}

func (c *OllamaCollector) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response failed: %w", path, err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
