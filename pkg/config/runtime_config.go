package config

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig 播放运行时配置
type RuntimeConfig struct {
	TPS         int     `yaml:"tps"`          // 主循环目标 TPS
	PreviewFPS  int     `yaml:"preview_fps"`  // 编辑器预览的合成帧率
	DefaultEase string  `yaml:"default_ease"` // 动画未指定缓动时使用的缓动
	MaxDelta    float64 `yaml:"max_delta"`    // 单帧增量时间上限（秒），防止卡顿后补间跳跃
}

// DefaultRuntimeConfig 返回默认配置
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		TPS:         60,
		PreviewFPS:  60,
		DefaultEase: "linear",
		MaxDelta:    0.1,
	}
}

// applyDefaults 为未填写的字段设置默认值
func (c *RuntimeConfig) applyDefaults() {
	d := DefaultRuntimeConfig()
	if c.TPS <= 0 {
		c.TPS = d.TPS
	}
	if c.PreviewFPS <= 0 {
		c.PreviewFPS = d.PreviewFPS
	}
	if c.DefaultEase == "" {
		c.DefaultEase = d.DefaultEase
	}
	if c.MaxDelta <= 0 {
		c.MaxDelta = d.MaxDelta
	}
}

// ClampDelta 按 MaxDelta 截断增量时间
func (c *RuntimeConfig) ClampDelta(dt float64) float64 {
	if c.MaxDelta > 0 && dt > c.MaxDelta {
		return c.MaxDelta
	}
	return dt
}

// LoadRuntimeConfig 从 fsys 加载运行时配置
func LoadRuntimeConfig(fsys fs.FS, path string) (*RuntimeConfig, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("无法读取运行时配置 %s: %w", path, err)
	}
	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("无法解析运行时配置 %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
