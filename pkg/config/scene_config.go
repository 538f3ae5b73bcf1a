package config

import (
	"fmt"
	"io/fs"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/track"
)

// SceneConfig 场景文件的顶层结构
type SceneConfig struct {
	Objects []ObjectConfig `yaml:"objects"`
}

// ObjectConfig 场景对象配置，组件均为可选
type ObjectConfig struct {
	Name        string             `yaml:"name"`
	Active      *bool              `yaml:"active,omitempty"`
	Transform   *TransformConfig   `yaml:"transform,omitempty"`
	Graphic     *GraphicConfig     `yaml:"graphic,omitempty"`
	CanvasGroup *CanvasGroupConfig `yaml:"canvas_group,omitempty"`
	Particles   *ParticlesConfig   `yaml:"particles,omitempty"`
	Player      *PlayerConfig      `yaml:"player,omitempty"`
	Children    []ObjectConfig     `yaml:"children,omitempty"`
}

// TransformConfig 变换组件
type TransformConfig struct {
	Position scene.Vec3  `yaml:"position"`
	Rotation scene.Vec3  `yaml:"rotation"`
	Scale    *scene.Vec3 `yaml:"scale,omitempty"` // 可选：nil=单位缩放
}

// GraphicConfig 图形组件
type GraphicConfig struct {
	Color  *scene.Color `yaml:"color,omitempty"` // 可选：nil=白色
	Width  float64      `yaml:"width"`
	Height float64      `yaml:"height"`
}

// CanvasGroupConfig 画布组组件
type CanvasGroupConfig struct {
	Alpha *float64 `yaml:"alpha,omitempty"` // 可选：nil=1
}

// ParticlesConfig 粒子发射器组件
type ParticlesConfig struct {
	Rate     float64 `yaml:"rate"`
	Duration float64 `yaml:"duration"`
	Lifetime float64 `yaml:"lifetime"`
	Loop     bool    `yaml:"loop"`
}

// PlayerConfig 播放器组件：引用一个剪辑
type PlayerConfig struct {
	Clip        string `yaml:"clip"`
	PlayOnStart string `yaml:"play_on_start,omitempty"`
}

// DecodeScene 解析场景 YAML
func DecodeScene(data []byte) (*SceneConfig, error) {
	var cfg SceneConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("无法解析场景: %w", err)
	}
	return &cfg, nil
}

// LoadScene 从 fsys 加载场景文件并构建场景
// 播放器组件需要剪辑，另行调用 AttachPlayers。
func LoadScene(fsys fs.FS, path string) (*SceneConfig, *scene.World, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, nil, fmt.Errorf("无法读取场景文件 %s: %w", path, err)
	}
	cfg, err := DecodeScene(data)
	if err != nil {
		return nil, nil, fmt.Errorf("场景文件 %s: %w", path, err)
	}
	w, err := BuildScene(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("场景文件 %s: %w", path, err)
	}
	return cfg, w, nil
}

// BuildScene 按配置创建对象层级与组件
func BuildScene(cfg *SceneConfig) (*scene.World, error) {
	w := scene.NewWorld()
	for i := range cfg.Objects {
		if err := buildObject(w, &cfg.Objects[i], nil); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func buildObject(w *scene.World, oc *ObjectConfig, parent *scene.Object) error {
	if oc.Name == "" {
		return fmt.Errorf("对象缺少 'name' 字段")
	}
	o := w.NewObject(oc.Name, parent)
	o.SetActive(enabled(oc.Active))

	if tc := oc.Transform; tc != nil {
		t := scene.Add(o, scene.NewTransform())
		t.Position = tc.Position
		t.Rotation = tc.Rotation
		if tc.Scale != nil {
			t.Scale = *tc.Scale
		}
	}
	if gc := oc.Graphic; gc != nil {
		g := scene.Add(o, scene.NewGraphic(gc.Width, gc.Height))
		if gc.Color != nil {
			g.Color = *gc.Color
		}
	}
	if cc := oc.CanvasGroup; cc != nil {
		cg := scene.Add(o, scene.NewCanvasGroup())
		if cc.Alpha != nil {
			cg.Alpha = *cc.Alpha
		}
	}
	if pc := oc.Particles; pc != nil {
		if pc.Rate < 0 || pc.Lifetime < 0 {
			return fmt.Errorf("对象 %s: 粒子参数不能为负", o.Path())
		}
		p := scene.Add(o, scene.NewParticleEmitter(pc.Rate, pc.Duration, pc.Lifetime))
		p.Loop = pc.Loop
	}

	for i := range oc.Children {
		if err := buildObject(w, &oc.Children[i], o); err != nil {
			return err
		}
	}
	return nil
}

// AttachPlayers 为配置了 player 的对象挂载播放器组件
// w 必须是由 cfg 构建的场景。需要在整个场景构建完成后调用，因为节点目标可能引用任意对象。
func AttachPlayers(w *scene.World, cfg *SceneConfig, clips *ClipManager) ([]*track.Player, error) {
	var players []*track.Player
	var attach func(configs []ObjectConfig, objects []*scene.Object) error
	attach = func(configs []ObjectConfig, objects []*scene.Object) error {
		if len(configs) != len(objects) {
			return fmt.Errorf("场景与配置不一致: %d 个对象配置, %d 个对象", len(configs), len(objects))
		}
		for i := range configs {
			oc, o := &configs[i], objects[i]
			if pc := oc.Player; pc != nil {
				clip, ok := clips.Get(pc.Clip)
				if !ok {
					return fmt.Errorf("对象 %s: 剪辑 %s 不存在", o.Path(), pc.Clip)
				}
				p, err := BuildPlayer(clip, w, o)
				if err != nil {
					return fmt.Errorf("对象 %s: %w", o.Path(), err)
				}
				p.PlayOnStart = pc.PlayOnStart
				scene.Add(o, p)
				players = append(players, p)
				log.Printf("[Config] Player attached to %s (clip %s, %d tracks)", o.Path(), clip.Name, len(p.Tracks()))
			}
			if err := attach(oc.Children, o.Children()); err != nil {
				return err
			}
		}
		return nil
	}
	if err := attach(cfg.Objects, w.Roots()); err != nil {
		return nil, err
	}
	return players, nil
}
