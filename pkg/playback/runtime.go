// Package playback 把调度器、补间管理器与播放参数绑定到 context 上
//
// 动画在播放时从 ctx 中取得运行时，因此同一份轨道数据既可以由游戏主循环驱动，
// 也可以由编辑器预览的合成帧泵驱动，而无需知道是谁在推进时间。
package playback

import (
	"context"
	"errors"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/tween"
)

// ErrNoRuntime 表示 ctx 中没有绑定运行时
var ErrNoRuntime = errors.New("playback: no runtime in context")

// Runtime 播放运行时：调度器 + 补间管理器
type Runtime struct {
	Scheduler *async.Scheduler
	Tweens    *tween.Manager
	// DefaultEase 动画未指定缓动时使用的缓动名，空表示线性
	DefaultEase string

	detach func()
}

// NewRuntime 创建运行时，补间管理器已挂到调度器的每帧钩子上
func NewRuntime() *Runtime {
	s := async.NewScheduler()
	m := tween.NewManager(s)
	return &Runtime{
		Scheduler: s,
		Tweens:    m,
		detach:    m.Attach(),
	}
}

// Tick 推进一帧
func (rt *Runtime) Tick(deltaTime float64) {
	rt.Scheduler.Tick(deltaTime)
}

// Go 在运行时的调度器上启动任务，ctx 会自动绑定本运行时
func (rt *Runtime) Go(ctx context.Context, fn func(ctx context.Context) error) *async.Task {
	return rt.Scheduler.Go(NewContext(ctx, rt), fn)
}

// Close 结束所有补间（跳到终点）并从调度器上摘除补间管理器
func (rt *Runtime) Close() {
	rt.Tweens.KillAll(true)
	if rt.detach != nil {
		rt.detach()
		rt.detach = nil
	}
}

type runtimeKey struct{}

// NewContext 返回绑定了 rt 的 ctx
func NewContext(ctx context.Context, rt *Runtime) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing, _ := ctx.Value(runtimeKey{}).(*Runtime); existing == rt {
		return ctx
	}
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// FromContext 取出 ctx 绑定的运行时
func FromContext(ctx context.Context) (*Runtime, error) {
	if ctx == nil {
		return nil, ErrNoRuntime
	}
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	if !ok || rt == nil {
		return nil, ErrNoRuntime
	}
	return rt, nil
}
