package config

import (
	"fmt"
	"io/fs"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/gonewx/playnodes/pkg/animation"
	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/track"
)

// ErrUnknownAnimationType 剪辑中引用了未注册的动画类型
var ErrUnknownAnimationType = animation.ErrUnknownType

// ClipConfig 剪辑文件的顶层结构
//
// 两种形式：
//   - 节点写出 target（对象路径）与 kind，构建时在场景中解析
//   - 剪辑写出 bindings，节点按声明顺序与绑定一一对应，可重定向到任意层级
type ClipConfig struct {
	Name     string          `yaml:"name"`
	Bindings []BindingConfig `yaml:"bindings,omitempty"`
	Tracks   []TrackConfig   `yaml:"tracks"`
}

// BindingConfig 一个具名、带类型的路径绑定
type BindingConfig struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`
}

// TrackConfig 轨道配置
type TrackConfig struct {
	Name   string       `yaml:"name"`
	Active *bool        `yaml:"active,omitempty"` // 可选：nil=默认激活
	Nodes  []NodeConfig `yaml:"nodes"`
}

// NodeConfig 节点配置
// Animations 保留原始 YAML 节点，每次构建都解码出新的动画实例。
type NodeConfig struct {
	Target     string      `yaml:"target,omitempty"`
	Kind       string      `yaml:"kind,omitempty"`
	Active     *bool       `yaml:"active,omitempty"`
	Animations []yaml.Node `yaml:"animations"`
}

func enabled(b *bool) bool {
	return b == nil || *b
}

// Retargetable 剪辑是否使用绑定列表
func (c *ClipConfig) Retargetable() bool {
	return len(c.Bindings) > 0
}

// NodeCount 返回所有轨道的节点总数
func (c *ClipConfig) NodeCount() int {
	n := 0
	for _, t := range c.Tracks {
		n += len(t.Nodes)
	}
	return n
}

// Validate 检查剪辑：名称非空、动画类型都已注册、绑定数量与节点数量一致
func (c *ClipConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("剪辑缺少 'name' 字段")
	}
	if _, err := c.buildTracks(nil); err != nil {
		return err
	}
	if c.Retargetable() && len(c.Bindings) < c.NodeCount() {
		return fmt.Errorf("剪辑 %s: %w: %d 个节点只有 %d 个绑定",
			c.Name, track.ErrBindingOutOfRange, c.NodeCount(), len(c.Bindings))
	}
	return nil
}

// DecodeClip 解析并校验剪辑 YAML
func DecodeClip(data []byte) (*ClipConfig, error) {
	var clip ClipConfig
	if err := yaml.Unmarshal(data, &clip); err != nil {
		return nil, fmt.Errorf("无法解析剪辑: %w", err)
	}
	if err := clip.Validate(); err != nil {
		return nil, err
	}
	return &clip, nil
}

// LoadClip 从 fsys 加载单个剪辑文件
func LoadClip(fsys fs.FS, path string) (*ClipConfig, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("无法读取剪辑文件 %s: %w", path, err)
	}
	clip, err := DecodeClip(data)
	if err != nil {
		return nil, fmt.Errorf("剪辑文件 %s: %w", path, err)
	}
	return clip, nil
}

// buildTracks 解码动画并构建轨道，resolve 为 nil 时节点不绑定目标
func (c *ClipConfig) buildTracks(resolve func(path, kind string) any) ([]*track.Track, error) {
	tracks := make([]*track.Track, 0, len(c.Tracks))
	for ti, tc := range c.Tracks {
		t := track.NewTrack(tc.Name)
		t.Active = enabled(tc.Active)
		for ni, nc := range tc.Nodes {
			node := track.NewNode(nil)
			node.Active = enabled(nc.Active)
			for ai := range nc.Animations {
				anim, err := animation.Decode(&nc.Animations[ai])
				if err != nil {
					return nil, fmt.Errorf("剪辑 %s 轨道 #%d(%s) 节点 #%d 动画 #%d: %w", c.Name, ti, tc.Name, ni, ai, err)
				}
				node.Animations = append(node.Animations, anim)
			}
			if resolve != nil && nc.Target != "" {
				node.Context = resolve(nc.Target, nc.Kind)
			}
			t.Nodes = append(t.Nodes, node)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// BuildTracks 构建轨道，节点目标在 w 中按路径与类型解析
// 找不到的目标记录警告，节点保持空目标（播放时什么也不做）。
func BuildTracks(clip *ClipConfig, w *scene.World) ([]*track.Track, error) {
	return clip.buildTracks(func(path, kind string) any {
		target, ok := w.Resolve(path, kind)
		if !ok {
			log.Printf("[Config] Warning: clip %s: target %q (%s) not resolved", clip.Name, path, kind)
			return nil
		}
		return target
	})
}

// BuildPlayer 构建播放器组件
// 使用绑定列表的剪辑以 owner 为根解析绑定（owner 为 nil 时在整个场景中解析）。
func BuildPlayer(clip *ClipConfig, w *scene.World, owner *scene.Object) (*track.Player, error) {
	if clip.Retargetable() {
		rp, err := BuildRetargetPlayer(clip, w, owner)
		if err != nil {
			return nil, err
		}
		if err := rp.Retarget(); err != nil {
			return nil, fmt.Errorf("剪辑 %s: %w", clip.Name, err)
		}
		return track.NewPlayer(rp.Tracks()...), nil
	}
	tracks, err := BuildTracks(clip, w)
	if err != nil {
		return nil, err
	}
	return track.NewPlayer(tracks...), nil
}

// BuildClip 构建未绑定目标的可重定向剪辑
func BuildClip(clip *ClipConfig) (*track.Clip, error) {
	tracks, err := clip.buildTracks(nil)
	if err != nil {
		return nil, err
	}
	bindings := make([]track.Binding, len(clip.Bindings))
	for i, b := range clip.Bindings {
		bindings[i] = track.Binding{Path: b.Path, Kind: b.Kind}
	}
	return &track.Clip{Name: clip.Name, Tracks: tracks, Bindings: bindings}, nil
}

// BuildRetargetPlayer 构建重定向到 root 下对象的播放器
func BuildRetargetPlayer(clip *ClipConfig, w *scene.World, root *scene.Object) (*track.RetargetPlayerCollection, error) {
	c, err := BuildClip(clip)
	if err != nil {
		return nil, err
	}
	return c.Retarget(w, root), nil
}
