package config

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gonewx/playnodes/pkg/store"
)

// ClipManager 剪辑配置管理器
// 负责加载、索引和热重载剪辑，按剪辑名访问。
type ClipManager struct {
	fsys    fs.FS
	root    string
	clips   map[string]*ClipConfig // 按名称索引
	sources map[string]string      // 剪辑名 -> 来源文件
	mu      sync.RWMutex
}

// NewClipManager 创建剪辑管理器
//
// 参数：
//   - fsys: 剪辑所在的文件系统（嵌入资源或 os.DirFS）
//   - root: 文件路径或目录路径
//   - 文件路径：只加载这一个剪辑
//   - 目录路径：加载目录下所有 *.yaml / *.yml 文件
//
// 返回：
//   - error: 读取、解析错误，或出现重复的剪辑名
func NewClipManager(fsys fs.FS, root string) (*ClipManager, error) {
	m := &ClipManager{fsys: fsys, root: root}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewClipManagerFromDB 从打包的剪辑数据库加载所有剪辑
// 这样创建的管理器没有文件来源，Reload 什么也不做。
func NewClipManagerFromDB(db *store.ClipDB) (*ClipManager, error) {
	names, err := db.Names()
	if err != nil {
		return nil, fmt.Errorf("无法列出剪辑数据库: %w", err)
	}
	clips := make(map[string]*ClipConfig, len(names))
	for _, name := range names {
		data, err := db.Get(name)
		if err != nil {
			return nil, err
		}
		clip, err := DecodeClip(data)
		if err != nil {
			return nil, fmt.Errorf("剪辑数据库条目 %s: %w", name, err)
		}
		if clip.Name != name {
			return nil, fmt.Errorf("剪辑数据库条目 %s 的名称为 %s", name, clip.Name)
		}
		clips[name] = clip
	}
	return &ClipManager{clips: clips}, nil
}

// Reload 重新加载全部剪辑
// 加载失败时保留原有剪辑不变。
func (m *ClipManager) Reload() error {
	if m.fsys == nil {
		return nil
	}
	files, err := clipFiles(m.fsys, m.root)
	if err != nil {
		return err
	}

	clips := make(map[string]*ClipConfig, len(files))
	sources := make(map[string]string, len(files))
	for _, file := range files {
		clip, err := LoadClip(m.fsys, file)
		if err != nil {
			return err
		}
		if prev, exists := sources[clip.Name]; exists {
			return fmt.Errorf("重复的剪辑名 %s: %s 与 %s", clip.Name, prev, file)
		}
		sources[clip.Name] = file
		clips[clip.Name] = clip
	}

	m.mu.Lock()
	m.clips = clips
	m.sources = sources
	m.mu.Unlock()
	return nil
}

// Source 返回剪辑的来源文件（fsys 中的路径），从数据库加载的剪辑没有来源
func (m *ClipManager) Source(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.sources[name]
	return file, ok
}

// clipFiles 列出 root 对应的剪辑文件
func clipFiles(fsys fs.FS, root string) ([]string, error) {
	info, err := fs.Stat(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("无法访问路径 %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("扫描目录 %s 失败: %w", root, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsClipFile(e.Name()) {
			continue
		}
		files = append(files, path.Join(root, e.Name()))
	}
	return files, nil
}

// IsClipFile 按扩展名判断是否为剪辑文件
func IsClipFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Get 按名称获取剪辑
func (m *ClipManager) Get(name string) (*ClipConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clip, ok := m.clips[name]
	return clip, ok
}

// Names 返回所有剪辑名（已排序）
func (m *ClipManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clips))
	for name := range m.clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len 返回剪辑数量
func (m *ClipManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clips)
}
