// Package animation 定义动画契约与内置动画类型
//
// 每种动画满足 Animation 接口，播放前通过 SetTarget 绑定目标对象。
// 内置实现分为两类：
//   - 延时后执行（RunDelayed）：等待 Delay 秒后运行动作，延时期间的取消会跳过动作
//   - 补间并等待（PlayTween）：创建补间并等待完成，取消时补间直接跳到终点
//
// 动画通过类型名注册（Register），配置文件按 type 字段实例化。
package animation

import (
	"context"
	"errors"
	"fmt"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/tween"
)

// ErrTargetType 表示绑定的目标类型与动画声明的目标类型不兼容
var ErrTargetType = errors.New("animation: incompatible target type")

// Animation 动画契约
type Animation interface {
	// Pin 返回钉号（0 表示未钉住）
	Pin() int
	// Enabled 禁用的动画不会被绑定也不会被播放
	Enabled() bool
	// Delay 开始前的延时（秒）
	Delay() float64
	// Duration 动画时长（秒，不含延时）
	Duration() float64
	// Play 播放到结束或被取消；普通的取消不返回错误
	Play(ctx context.Context) error
	// SetTarget 绑定目标，类型不兼容时返回 ErrTargetType
	SetTarget(target any) error
	// Clone 返回只含配置的副本：不带绑定的目标和钉值覆盖
	Clone() Animation
}

// PinValueReceiver 可选接口：接受运行时的终值覆盖
// value 为 nil 表示清除覆盖。
type PinValueReceiver interface {
	SetPinValue(value any) error
}

// Base 所有动画共有的字段
type Base struct {
	Enable          bool    `yaml:"enable"`
	PinID           int     `yaml:"pin"`
	DelaySeconds    float64 `yaml:"delay"`
	DurationSeconds float64 `yaml:"duration"`
}

// Pin 返回钉号
func (b *Base) Pin() int { return b.PinID }

// Enabled 返回启用标志
func (b *Base) Enabled() bool { return b.Enable }

// Delay 返回延时
func (b *Base) Delay() float64 { return b.DelaySeconds }

// Duration 返回时长
func (b *Base) Duration() float64 { return b.DurationSeconds }

// TweenBase 补间动画共有的字段
type TweenBase struct {
	Base `yaml:",inline"`
	Ease string `yaml:"ease"`
}

// Bind 把 target 转换为 T
//
// T 为 *scene.Transform 时接受任何变换类目标（对象、组件），自动取出其 Transform；
// 其他类型要求精确匹配。
func Bind[T any](target any) (T, error) {
	var zero T
	if target == nil {
		return zero, fmt.Errorf("%w: nil target, want %T", ErrTargetType, zero)
	}
	if v, ok := target.(T); ok {
		return v, nil
	}
	if _, wantTransform := any(zero).(*scene.Transform); wantTransform {
		if tr, ok := scene.TransformOf(target); ok {
			return any(tr).(T), nil
		}
	}
	return zero, fmt.Errorf("%w: got %T, want %T", ErrTargetType, target, zero)
}

// errUnbound 播放前没有成功绑定目标
func errUnbound(a Animation) error {
	return fmt.Errorf("%w: %T played without a target", ErrTargetType, a)
}

// canceled 报告 err 是否只是 ctx 的取消
func canceled(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
}

// RunDelayed 等待 delay 秒后执行 body
//
// 延时期间被取消：不返回错误，也不执行 body。
// body 返回的取消错误同样被吸收。
func RunDelayed(ctx context.Context, delay float64, body func(ctx context.Context) error) error {
	if delay > 0 {
		if err := async.Delay(ctx, delay); err != nil {
			if canceled(ctx, err) {
				return nil
			}
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := body(ctx); err != nil && !canceled(ctx, err) {
		return err
	}
	return nil
}

// PlayTween 创建补间并等待其完成
//
// 参数：
//   - apply: 接收缓动后的进度，把它映射到目标属性
//   - onStart: 插值开始时调用（延时结束后），用于捕获起始值，可以为 nil
//
// 取消时补间跳到终点，完成回调照常触发，返回 nil。
func PlayTween(ctx context.Context, b *TweenBase, apply func(p float64), onStart func()) error {
	rt, err := playback.FromContext(ctx)
	if err != nil {
		return err
	}
	easeName := b.Ease
	if easeName == "" {
		easeName = rt.DefaultEase
	}
	tw := rt.Tweens.To(apply, b.Duration()).
		SetEase(tween.EaseByName(easeName)).
		SetDelay(b.Delay()).
		SetRecyclable(true)
	if onStart != nil {
		tw.OnStart(onStart)
	}
	return tween.Await(ctx, tw)
}
