package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/LENAX/task-visualizer/pkg/core/liveness"
)

// ValidateConfig 校验配置合法性
func ValidateConfig(cfg *VisualizerConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}
	v := cfg.TaskVisualizer

	// 校验General
	if v.General.InstanceName == "" {
		return fmt.Errorf("instance_name不能为空")
	}
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[v.General.LogLevel] {
		return fmt.Errorf("log_level必须是trace/debug/info/warn/error之一")
	}

	// 校验Publisher
	if _, err := liveness.ParseMode(v.Publisher.Mode); err != nil {
		return fmt.Errorf("publisher.mode必须是running/all之一")
	}
	// cron最小粒度为1秒
	if v.Publisher.Interval < time.Second {
		return fmt.Errorf("publisher.interval不能小于1s")
	}
	if v.Publisher.SinkBuffer <= 0 {
		return fmt.Errorf("publisher.sink_buffer必须大于0")
	}
	if strings.TrimSpace(v.Publisher.NTKey) == "" {
		return fmt.Errorf("publisher.nt_key不能为空")
	}

	if v.Scheduler.Period <= 0 {
		return fmt.Errorf("scheduler.period必须大于0")
	}

	// 校验Storage.KV
	if v.Storage.KV.Enabled {
		validKVTypes := map[string]bool{
			"memory":     true,
			"sqlite":     true,
			"postgres":   true,
			"postgresql": true,
			"mysql":      true,
		}
		if !validKVTypes[v.Storage.KV.Type] {
			return fmt.Errorf("storage.kv.type必须是memory/sqlite/postgres/mysql之一")
		}
		if v.Storage.KV.Type != "memory" && v.Storage.KV.DSN == "" {
			return fmt.Errorf("storage.kv.dsn不能为空")
		}
		if v.Storage.KV.MaxIdleConns < 0 {
			return fmt.Errorf("storage.kv.max_idle_conns不能为负数")
		}
	}

	// 校验Transport
	if v.Transport.Watermill.Enabled && v.Transport.Watermill.Topic == "" {
		return fmt.Errorf("transport.watermill.topic不能为空")
	}
	if v.Transport.WebSocket.Enabled && !strings.HasPrefix(v.Transport.WebSocket.Path, "/") {
		return fmt.Errorf("transport.websocket.path必须以/开头")
	}

	// 校验Server
	if v.Server.Port <= 0 || v.Server.Port > 65535 {
		return fmt.Errorf("server.port必须在1-65535之间")
	}
	return nil
}
