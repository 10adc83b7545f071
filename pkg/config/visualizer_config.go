package config

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/storage/sqlkv"
)

// VisualizerConfig 可视化服务配置（对外导出）
type VisualizerConfig struct {
	TaskVisualizer struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
			Env          string `yaml:"env"`
		} `yaml:"general"`
		Publisher struct {
			Enabled         *bool         `yaml:"enabled"`
			Mode            string        `yaml:"mode"`
			Interval        time.Duration `yaml:"interval"`
			SinkBuffer      int           `yaml:"sink_buffer"`
			DescriptorCache time.Duration `yaml:"descriptor_cache"`
			NTKey           string        `yaml:"nt_key"`
		} `yaml:"publisher"`
		Scheduler struct {
			Period time.Duration `yaml:"period"`
		} `yaml:"scheduler"`
		Storage struct {
			KV struct {
				Enabled         bool          `yaml:"enabled"`
				Type            string        `yaml:"type"`
				DSN             string        `yaml:"dsn"`
				MaxOpenConns    int           `yaml:"max_open_conns"`
				MaxIdleConns    int           `yaml:"max_idle_conns"`
				ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
			} `yaml:"kv"`
		} `yaml:"storage"`
		Transport struct {
			Watermill struct {
				Enabled bool   `yaml:"enabled"`
				Topic   string `yaml:"topic"`
			} `yaml:"watermill"`
			WebSocket struct {
				Enabled    bool   `yaml:"enabled"`
				Path       string `yaml:"path"`
				SendBuffer int    `yaml:"send_buffer"`
			} `yaml:"websocket"`
		} `yaml:"transport"`
		Server struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"server"`
	} `yaml:"task-visualizer"`
}

// PublisherEnabled 发布器初始是否启用，未配置时为true
func (c *VisualizerConfig) PublisherEnabled() bool {
	enabled := c.TaskVisualizer.Publisher.Enabled
	return enabled == nil || *enabled
}

// GetMode 获取快照范围
func (c *VisualizerConfig) GetMode() liveness.Mode {
	mode, err := liveness.ParseMode(c.TaskVisualizer.Publisher.Mode)
	if err != nil {
		return liveness.ModeRunning
	}
	return mode
}

// GetInterval 获取发布间隔
func (c *VisualizerConfig) GetInterval() time.Duration {
	interval := c.TaskVisualizer.Publisher.Interval
	if interval <= 0 {
		return time.Second
	}
	return interval
}

// GetKVType 获取键值存储类型
func (c *VisualizerConfig) GetKVType() string {
	return c.TaskVisualizer.Storage.KV.Type
}

// GetKVDSN 获取键值存储DSN
func (c *VisualizerConfig) GetKVDSN() string {
	return c.TaskVisualizer.Storage.KV.DSN
}

// GetPoolConfig 获取SQL连接池配置
func (c *VisualizerConfig) GetPoolConfig() sqlkv.PoolConfig {
	kv := c.TaskVisualizer.Storage.KV
	return sqlkv.PoolConfig{
		MaxOpenConns:    kv.MaxOpenConns,
		MaxIdleConns:    kv.MaxIdleConns,
		ConnMaxLifetime: kv.ConnMaxLifetime,
	}
}

// GetListenAddr 获取HTTP监听地址
func (c *VisualizerConfig) GetListenAddr() string {
	return c.TaskVisualizer.Server.Host + ":" + itoa(c.TaskVisualizer.Server.Port)
}

// NewLogger 按log_level创建watermill日志
func (c *VisualizerConfig) NewLogger() watermill.LoggerAdapter {
	switch c.TaskVisualizer.General.LogLevel {
	case "trace":
		return watermill.NewStdLogger(true, true)
	case "debug":
		return watermill.NewStdLogger(true, false)
	default:
		return watermill.NewStdLogger(false, false)
	}
}

// ApplyDefaults 应用默认值
func (c *VisualizerConfig) ApplyDefaults() {
	v := &c.TaskVisualizer

	// General默认值
	if v.General.InstanceName == "" {
		v.General.InstanceName = "task-visualizer"
	}
	if v.General.LogLevel == "" {
		v.General.LogLevel = "info"
	}
	if v.General.Env == "" {
		v.General.Env = "dev"
	}

	// Publisher默认值
	if v.Publisher.Mode == "" {
		v.Publisher.Mode = liveness.ModeRunning.String()
	}
	if v.Publisher.Interval <= 0 {
		v.Publisher.Interval = time.Second
	}
	if v.Publisher.SinkBuffer <= 0 {
		v.Publisher.SinkBuffer = 16
	}
	if v.Publisher.DescriptorCache <= 0 {
		v.Publisher.DescriptorCache = 10 * time.Minute
	}
	if v.Publisher.NTKey == "" {
		v.Publisher.NTKey = "CommandDescriptors"
	}

	if v.Scheduler.Period <= 0 {
		v.Scheduler.Period = 20 * time.Millisecond
	}

	// KV存储默认值
	if v.Storage.KV.Type == "" {
		v.Storage.KV.Type = "memory"
	}
	if v.Storage.KV.MaxOpenConns <= 0 {
		v.Storage.KV.MaxOpenConns = 10
	}
	if v.Storage.KV.MaxIdleConns <= 0 {
		v.Storage.KV.MaxIdleConns = 5
	}
	if v.Storage.KV.ConnMaxLifetime <= 0 {
		v.Storage.KV.ConnMaxLifetime = 2 * time.Hour
	}

	// Transport默认值
	if v.Transport.Watermill.Topic == "" {
		v.Transport.Watermill.Topic = "task.snapshot"
	}
	if v.Transport.WebSocket.Path == "" {
		v.Transport.WebSocket.Path = "/ws"
	}
	if v.Transport.WebSocket.SendBuffer <= 0 {
		v.Transport.WebSocket.SendBuffer = 8
	}

	// Server默认值
	if v.Server.Port <= 0 {
		v.Server.Port = 8080
	}
	if v.Server.ReadTimeout <= 0 {
		v.Server.ReadTimeout = 15 * time.Second
	}
	if v.Server.WriteTimeout <= 0 {
		v.Server.WriteTimeout = 15 * time.Second
	}
}
