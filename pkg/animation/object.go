package animation

import (
	"context"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/scene"
)

// SetActive 延时后切换对象的激活状态
type SetActive struct {
	Base   `yaml:",inline"`
	Active bool `yaml:"active"`

	target *scene.Object
}

// NewSetActive 创建激活动画（默认激活）
func NewSetActive() *SetActive {
	return &SetActive{Base: Base{Enable: true}, Active: true}
}

// Clone 复制配置
func (a *SetActive) Clone() Animation {
	c := *a
	c.target = nil
	return &c
}

// SetTarget 接受对象或组件（取其所属对象）
func (a *SetActive) SetTarget(target any) error {
	if c, ok := target.(scene.Component); ok && c.Object() != nil {
		a.target = c.Object()
		return nil
	}
	o, err := Bind[*scene.Object](target)
	if err != nil {
		return err
	}
	a.target = o
	return nil
}

// Play 播放
func (a *SetActive) Play(ctx context.Context) error {
	o := a.target
	if o == nil {
		return errUnbound(a)
	}
	return RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		o.SetActive(a.Active)
		return nil
	})
}

// Wait 只占用时间（Delay + Duration），用于撑开节点时长
type Wait struct {
	Base `yaml:",inline"`
}

// NewWait 创建等待
func NewWait() *Wait {
	return &Wait{Base: Base{Enable: true}}
}

// SetTarget 接受任意目标
func (a *Wait) SetTarget(target any) error { return nil }

// Clone 复制配置
func (a *Wait) Clone() Animation {
	c := *a
	return &c
}

// Play 等待
func (a *Wait) Play(ctx context.Context) error {
	return RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		return async.Delay(ctx, a.Duration())
	})
}
