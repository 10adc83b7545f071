// Package client 任务可视化服务的HTTP API客户端
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
	"github.com/LENAX/task-visualizer/pkg/core/graph"
)

// Client HTTP API客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ========== Snapshot API ==========

// Snapshot 获取描述符快照
func (c *Client) Snapshot(fresh bool, mode string) (*dto.SnapshotResponse, error) {
	var resp dto.APIResponse[dto.SnapshotResponse]
	if err := c.get("/api/v1/snapshot"+snapshotQuery(fresh, mode), &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// Graph 获取快照图
func (c *Client) Graph(fresh bool, mode string) (*graph.Graph, error) {
	var resp dto.APIResponse[graph.Graph]
	if err := c.get("/api/v1/graph"+snapshotQuery(fresh, mode), &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// Tasks 列出被跟踪的任务
func (c *Client) Tasks(mode string, limit, offset int) (*dto.ListResponse[dto.TaskSummary], error) {
	params := url.Values{}
	if mode != "" {
		params.Set("mode", mode)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/v1/tasks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp dto.APIResponse[dto.ListResponse[dto.TaskSummary]]
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// Describers 列出已注册的描述器
func (c *Client) Describers() ([]dto.DescriberInfo, error) {
	var resp dto.APIResponse[[]dto.DescriberInfo]
	if err := c.get("/api/v1/describers", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return resp.Data, nil
}

// Status 获取引擎状态
func (c *Client) Status() (*engine.Status, error) {
	var resp dto.APIResponse[engine.Status]
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// ========== Publisher API ==========

// EnablePublisher 启用快照发布
func (c *Client) EnablePublisher() (*dto.PublisherStateResponse, error) {
	return c.publisher("/api/v1/publisher/enable", nil)
}

// DisablePublisher 禁用快照发布
func (c *Client) DisablePublisher() (*dto.PublisherStateResponse, error) {
	return c.publisher("/api/v1/publisher/disable", nil)
}

// SetMode 切换快照范围
func (c *Client) SetMode(mode string) (*dto.PublisherStateResponse, error) {
	return c.publisher("/api/v1/publisher/mode", dto.PublisherModeRequest{Mode: mode})
}

func (c *Client) publisher(path string, body any) (*dto.PublisherStateResponse, error) {
	var resp dto.APIResponse[dto.PublisherStateResponse]
	if err := c.post(path, body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// ========== Health API ==========

// Health 健康检查
func (c *Client) Health() (*dto.HealthResponse, error) {
	var resp dto.APIResponse[dto.HealthResponse]
	if err := c.get("/health", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.New(resp.Message)
	}
	return &resp.Data, nil
}

// ========== HTTP Methods ==========

func snapshotQuery(fresh bool, mode string) string {
	params := url.Values{}
	if fresh {
		params.Set("fresh", "true")
	}
	if mode != "" {
		params.Set("mode", mode)
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

func (c *Client) get(path string, result any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp, result)
}

func (c *Client) post(path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", reqBody)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp, result)
}

func (c *Client) parseResponse(resp *http.Response, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("解析响应失败: %w, status: %d, body: %s", err, resp.StatusCode, string(body))
	}

	return nil
}
