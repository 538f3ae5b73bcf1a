package animation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownType 表示没有注册该类型名的动画
var ErrUnknownType = errors.New("animation: unknown type")

// Factory 创建一个带默认值的动画实例
type Factory func() Animation

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register 注册动画类型，重复注册会 panic
func Register(typeName string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[typeName]; dup {
		panic(fmt.Sprintf("animation: type %q registered twice", typeName))
	}
	registry[typeName] = factory
}

// New 按类型名创建动画
func New(typeName string) (Animation, error) {
	registryMu.RLock()
	factory, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return factory(), nil
}

// Types 返回所有已注册的类型名（已排序）
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode 从 YAML 节点解码动画，节点的 type 字段决定具体类型
// 未写出的字段保留工厂设置的默认值。
func Decode(node *yaml.Node) (Animation, error) {
	var header struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&header); err != nil {
		return nil, err
	}
	if header.Type == "" {
		return nil, fmt.Errorf("line %d: animation without type", node.Line)
	}
	anim, err := New(header.Type)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	if err := node.Decode(anim); err != nil {
		return nil, fmt.Errorf("line %d: decode %s: %w", node.Line, header.Type, err)
	}
	return anim, nil
}

func init() {
	Register("move_transform", func() Animation { return NewMoveTransform() })
	Register("rotate_transform", func() Animation { return NewRotateTransform() })
	Register("scale_transform", func() Animation { return NewScaleTransform() })
	Register("punch_scale", func() Animation { return NewPunchScale() })
	Register("fade_graphic", func() Animation { return NewFadeGraphic() })
	Register("color_graphic", func() Animation { return NewColorGraphic() })
	Register("fade_canvas_group", func() Animation { return NewFadeCanvasGroup() })
	Register("play_particles", func() Animation { return NewPlayParticles() })
	Register("stop_particles", func() Animation { return NewStopParticles() })
	Register("emit_particles", func() Animation { return NewEmitParticles() })
	Register("set_active", func() Animation { return NewSetActive() })
	Register("wait", func() Animation { return NewWait() })
	Register("script", func() Animation { return NewScript() })
}
