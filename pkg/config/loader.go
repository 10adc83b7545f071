package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadConfig 加载配置文件，支持${ENV}形式的环境变量替换
// 文件不存在时返回默认配置
func LoadConfig(path string) (*VisualizerConfig, error) {
	cfg := &VisualizerConfig{}
	if path == "" {
		cfg.ApplyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Marshal 序列化为YAML
func (c *VisualizerConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func itoa(i int) string { return strconv.Itoa(i) }
