// Package store 持久化：编辑器偏好（gdata）与打包的剪辑数据库（bbolt）
package store

import (
	"fmt"
	"log"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPreviewFPS 预览帧率默认值
const DefaultPreviewFPS = 60

// PreviewPrefs 编辑器预览偏好
type PreviewPrefs struct {
	// PreviewFPS 预览时合成帧的频率
	PreviewFPS int `yaml:"previewFps"`
	// LastTrack 每个播放器（按对象路径）最后预览的轨道名
	LastTrack map[string]string `yaml:"lastTrack"`
}

// DefaultPreviewPrefs 返回默认偏好
func DefaultPreviewPrefs() *PreviewPrefs {
	return &PreviewPrefs{
		PreviewFPS: DefaultPreviewFPS,
		LastTrack:  make(map[string]string),
	}
}

// 存储路径常量
const (
	prefsObject   = "editor"
	prefsProperty = "preview"
)

// Prefs 偏好管理器
//
// gdataManager 为 nil 时进入降级模式：偏好只保存在内存中，Save 不报错。
type Prefs struct {
	mu           sync.RWMutex
	gdataManager *gdata.Manager
	prefs        *PreviewPrefs
}

// NewPrefs 创建偏好管理器并尝试加载已保存的偏好
// 加载失败不是致命错误，记录警告后使用默认值。
func NewPrefs(gdataManager *gdata.Manager) *Prefs {
	p := &Prefs{gdataManager: gdataManager, prefs: DefaultPreviewPrefs()}
	if err := p.Load(); err != nil {
		log.Printf("[Prefs] Warning: Failed to load preferences: %v (using defaults)", err)
	}
	return p
}

// Load 从 gdata 加载偏好，不存在时使用默认值
func (p *Prefs) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prefs = DefaultPreviewPrefs()
	if p.gdataManager == nil || !p.gdataManager.ObjectPropExists(prefsObject, prefsProperty) {
		return nil
	}

	data, err := p.gdataManager.LoadObjectProp(prefsObject, prefsProperty)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	loaded := DefaultPreviewPrefs()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	if loaded.PreviewFPS <= 0 {
		loaded.PreviewFPS = DefaultPreviewFPS
	}
	if loaded.LastTrack == nil {
		loaded.LastTrack = make(map[string]string)
	}
	p.prefs = loaded
	return nil
}

// Save 保存偏好到 gdata
func (p *Prefs) Save() error {
	if p == nil || p.gdataManager == nil {
		return nil
	}
	p.mu.RLock()
	data, err := yaml.Marshal(p.prefs)
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := p.gdataManager.SaveObjectProp(prefsObject, prefsProperty, data); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// PreviewFPS 返回预览帧率
func (p *Prefs) PreviewFPS() int {
	if p == nil {
		return DefaultPreviewFPS
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs.PreviewFPS
}

// SetPreviewFPS 设置预览帧率，非正数恢复默认值
// 注意：仅修改内存中的偏好，需调用 Save() 持久化
func (p *Prefs) SetPreviewFPS(fps int) {
	if fps <= 0 {
		fps = DefaultPreviewFPS
	}
	p.mu.Lock()
	p.prefs.PreviewFPS = fps
	p.mu.Unlock()
}

// LastPreviewed 返回播放器最后预览的轨道名
func (p *Prefs) LastPreviewed(player string) string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs.LastTrack[player]
}

// SetLastPreviewed 记录播放器最后预览的轨道名并持久化
func (p *Prefs) SetLastPreviewed(player, track string) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.prefs.LastTrack[player] = track
	p.mu.Unlock()
	return p.Save()
}
