package animation

import (
	"context"

	"github.com/gonewx/playnodes/pkg/scene"
)

// FadeGraphic 图形透明度补间
type FadeGraphic struct {
	TweenBase `yaml:",inline"`
	From      *float64 `yaml:"from"`
	To        float64  `yaml:"to"`

	target *scene.Graphic
	pinned override[float64]
}

// NewFadeGraphic 创建淡入动画（默认终值 1）
func NewFadeGraphic() *FadeGraphic {
	return &FadeGraphic{TweenBase: TweenBase{Base: Base{Enable: true}}, To: 1}
}

// Clone 复制配置
func (a *FadeGraphic) Clone() Animation {
	c := *a
	c.target, c.pinned = nil, override[float64]{}
	return &c
}

// SetTarget 目标必须是 *scene.Graphic
func (a *FadeGraphic) SetTarget(target any) error {
	g, err := Bind[*scene.Graphic](target)
	if err != nil {
		return err
	}
	a.target = g
	return nil
}

// SetPinValue 覆盖终值透明度
func (a *FadeGraphic) SetPinValue(value any) error {
	return a.pinned.apply(value, toFloat)
}

// Play 播放
func (a *FadeGraphic) Play(ctx context.Context) error {
	g := a.target
	if g == nil {
		return errUnbound(a)
	}
	to := a.pinned.or(a.To)
	var from float64
	return PlayTween(ctx, &a.TweenBase,
		func(p float64) { g.SetAlpha(from + (to-from)*p) },
		func() {
			from = g.Alpha()
			if a.From != nil {
				from = *a.From
			}
		})
}

// ColorGraphic 图形颜色补间
type ColorGraphic struct {
	TweenBase `yaml:",inline"`
	From      *scene.Color `yaml:"from"`
	To        scene.Color  `yaml:"to"`

	target *scene.Graphic
	pinned override[scene.Color]
}

// NewColorGraphic 创建颜色动画（默认终值白色）
func NewColorGraphic() *ColorGraphic {
	return &ColorGraphic{TweenBase: TweenBase{Base: Base{Enable: true}}, To: scene.White}
}

// Clone 复制配置
func (a *ColorGraphic) Clone() Animation {
	c := *a
	c.target, c.pinned = nil, override[scene.Color]{}
	return &c
}

// SetTarget 目标必须是 *scene.Graphic
func (a *ColorGraphic) SetTarget(target any) error {
	g, err := Bind[*scene.Graphic](target)
	if err != nil {
		return err
	}
	a.target = g
	return nil
}

// SetPinValue 覆盖终值颜色（scene.Color 或 "#rrggbb"）
func (a *ColorGraphic) SetPinValue(value any) error {
	return a.pinned.apply(value, toColor)
}

// Play 播放
func (a *ColorGraphic) Play(ctx context.Context) error {
	g := a.target
	if g == nil {
		return errUnbound(a)
	}
	to := a.pinned.or(a.To)
	var from scene.Color
	return PlayTween(ctx, &a.TweenBase,
		func(p float64) { g.Color = from.Lerp(to, p) },
		func() {
			from = g.Color
			if a.From != nil {
				from = *a.From
			}
		})
}

// FadeCanvasGroup CanvasGroup 透明度补间
type FadeCanvasGroup struct {
	TweenBase `yaml:",inline"`
	From      *float64 `yaml:"from"`
	To        float64  `yaml:"to"`

	target *scene.CanvasGroup
	pinned override[float64]
}

// NewFadeCanvasGroup 创建整体淡入动画（默认终值 1）
func NewFadeCanvasGroup() *FadeCanvasGroup {
	return &FadeCanvasGroup{TweenBase: TweenBase{Base: Base{Enable: true}}, To: 1}
}

// Clone 复制配置
func (a *FadeCanvasGroup) Clone() Animation {
	c := *a
	c.target, c.pinned = nil, override[float64]{}
	return &c
}

// SetTarget 目标必须是 *scene.CanvasGroup
func (a *FadeCanvasGroup) SetTarget(target any) error {
	cg, err := Bind[*scene.CanvasGroup](target)
	if err != nil {
		return err
	}
	a.target = cg
	return nil
}

// SetPinValue 覆盖终值透明度
func (a *FadeCanvasGroup) SetPinValue(value any) error {
	return a.pinned.apply(value, toFloat)
}

// Play 播放
func (a *FadeCanvasGroup) Play(ctx context.Context) error {
	cg := a.target
	if cg == nil {
		return errUnbound(a)
	}
	to := a.pinned.or(a.To)
	var from float64
	return PlayTween(ctx, &a.TweenBase,
		func(p float64) { cg.Alpha = from + (to-from)*p },
		func() {
			from = cg.Alpha
			if a.From != nil {
				from = *a.From
			}
		})
}
