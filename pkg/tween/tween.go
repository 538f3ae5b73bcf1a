// Package tween 在 gween 之上提供可等待、可取消的补间句柄
//
// 每个 Tween 驱动一个 0 -> 1 的缓动进度，由调用方提供的 apply 回调把进度
// 映射到具体属性（位置、颜色、透明度……）。Manager 每帧推进所有补间，
// 通常作为 async.Scheduler 的 OnUpdate 钩子运行。
package tween

import (
	"context"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// State 补间状态
type State int

const (
	StatePlaying State = iota
	StatePaused
	StateCompleted
	StateKilled
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateKilled:
		return "killed"
	}
	return "unknown"
}

// Tween 单个补间句柄
//
// 句柄只能在调度器上下文（任务或钩子）中使用。
// 可回收的补间结束后会被 Manager 复用，复用时 Generation 递增。
type Tween struct {
	m   *Manager
	gen uint32

	progress *gween.Tween
	easeFn   ease.TweenFunc
	apply    func(p float64)

	duration float64
	delay    float64
	waited   float64
	elapsed  float64
	started  bool

	state      State
	recyclable bool
	pooled     bool

	onStart    []func()
	onComplete []func()

	completion *async.Task
	resolve    func(error)
}

func (t *Tween) reset(apply func(p float64), duration float64) {
	if duration < 0 {
		duration = 0
	}
	t.apply = apply
	t.duration = duration
	t.easeFn = ease.Linear
	t.progress = gween.New(0, 1, float32(duration), t.easeFn)
	t.delay = 0
	t.waited = 0
	t.elapsed = 0
	t.started = false
	t.state = StatePlaying
	t.recyclable = false
	t.onStart = nil
	t.onComplete = nil
	t.completion, t.resolve = t.m.sched.NewCompletion()
}

// Generation 返回句柄的代数，回收复用后会改变
func (t *Tween) Generation() uint32 { return t.gen }

// State 返回当前状态
func (t *Tween) State() State { return t.state }

// Duration 返回插值时长（秒，不含延时）
func (t *Tween) Duration() float64 { return t.duration }

// Elapsed 返回插值已经经过的时间（秒，不含延时）
func (t *Tween) Elapsed() float64 { return t.elapsed }

// IsActive 报告补间是否仍在生命周期内（播放或暂停）
func (t *Tween) IsActive() bool {
	return t.state == StatePlaying || t.state == StatePaused
}

// Started 报告延时是否已结束、插值是否已开始
func (t *Tween) Started() bool { return t.started }

// IsPlaying 报告补间是否正在播放
func (t *Tween) IsPlaying() bool { return t.state == StatePlaying }

// Completion 返回补间结束（完成或被杀死）时结束的任务
func (t *Tween) Completion() *async.Task { return t.completion }

// SetEase 设置缓动函数，nil 表示线性
func (t *Tween) SetEase(fn ease.TweenFunc) *Tween {
	if fn == nil {
		fn = ease.Linear
	}
	t.easeFn = fn
	t.progress = gween.New(0, 1, float32(t.duration), fn)
	if t.elapsed > 0 {
		t.progress.Set(float32(t.elapsed))
	}
	return t
}

// SetDelay 设置开始插值前的延时（秒）
func (t *Tween) SetDelay(seconds float64) *Tween {
	if seconds < 0 {
		seconds = 0
	}
	t.delay = seconds
	return t
}

// SetRecyclable 结束后允许 Manager 复用此句柄
func (t *Tween) SetRecyclable(recyclable bool) *Tween {
	t.recyclable = recyclable
	return t
}

// OnStart 注册插值开始（延时结束）时的回调
func (t *Tween) OnStart(fn func()) *Tween {
	t.onStart = append(t.onStart, fn)
	return t
}

// OnComplete 注册完成回调，Complete 和自然结束都会触发，Kill(false) 不会
func (t *Tween) OnComplete(fn func()) *Tween {
	t.onComplete = append(t.onComplete, fn)
	return t
}

// Play 恢复暂停的补间
func (t *Tween) Play() *Tween {
	if t.state == StatePaused {
		t.state = StatePlaying
	}
	return t
}

// Pause 暂停补间
func (t *Tween) Pause() *Tween {
	if t.state == StatePlaying {
		t.state = StatePaused
	}
	return t
}

// Restart 从头开始播放（重新计算延时），已结束的补间会得到新的 Completion
func (t *Tween) Restart() *Tween {
	if t.pooled {
		return t
	}
	if !t.IsActive() {
		t.completion, t.resolve = t.m.sched.NewCompletion()
		t.m.track(t)
	}
	t.waited = 0
	t.elapsed = 0
	t.started = false
	t.progress = gween.New(0, 1, float32(t.duration), t.easeFn)
	t.state = StatePlaying
	return t
}

// Goto 跳转到插值时间 seconds 并暂停，用于编辑器拖动预览
// 跳到末尾等同于 Complete。
func (t *Tween) Goto(seconds float64) {
	if !t.IsActive() {
		return
	}
	if seconds >= t.duration {
		t.Complete()
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	t.waited = t.delay
	t.begin()
	v, _ := t.progress.Set(float32(seconds))
	t.elapsed = seconds
	t.apply(float64(v))
	t.state = StatePaused
}

// Complete 立即跳到终点，触发完成回调并结束 Completion
func (t *Tween) Complete() {
	if !t.IsActive() {
		return
	}
	t.waited = t.delay
	t.begin()
	t.progress.Set(float32(t.duration))
	t.elapsed = t.duration
	t.apply(1)
	t.finish(StateCompleted)
}

// Kill 结束补间，complete 为 true 时先跳到终点
func (t *Tween) Kill(complete bool) {
	if !t.IsActive() {
		return
	}
	if complete {
		t.Complete()
		return
	}
	t.finish(StateKilled)
}

func (t *Tween) begin() {
	if t.started {
		return
	}
	t.started = true
	for _, fn := range t.onStart {
		fn()
	}
}

func (t *Tween) finish(state State) {
	t.state = state
	if state == StateCompleted {
		for _, fn := range t.onComplete {
			fn()
		}
	}
	t.resolve(nil)
}

// advance 推进 dt 秒：先消耗延时，剩余部分用于插值
func (t *Tween) advance(dt float64) {
	if t.waited < t.delay {
		t.waited += dt
		if t.waited < t.delay {
			return
		}
		dt = t.waited - t.delay
		t.waited = t.delay
	}
	t.begin()

	if t.duration <= 0 {
		t.elapsed = 0
		t.apply(1)
		t.finish(StateCompleted)
		return
	}

	v, finished := t.progress.Update(float32(dt))
	t.elapsed += dt
	if t.elapsed > t.duration {
		t.elapsed = t.duration
	}
	if finished {
		t.apply(1)
		t.finish(StateCompleted)
		return
	}
	t.apply(float64(v))
}

// Await 等待补间结束
//
// ctx 被取消时：
//   - 已开始插值（或没有延时）的补间直接跳到终点，完成回调照常触发
//   - 仍在延时中的补间被杀死，目标属性保持不变
//
// 两种情况都返回 nil，取消不视为错误。
func Await(ctx context.Context, t *Tween) error {
	gen := t.gen
	err := t.Completion().Await(ctx)
	if err != nil && ctx.Err() != nil {
		if t.gen == gen {
			t.Kill(t.started || t.delay <= 0)
		}
		return nil
	}
	return err
}
