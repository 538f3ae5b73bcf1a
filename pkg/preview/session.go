// Package preview 编辑器预览：在不运行游戏主循环的情况下播放轨道，结束后整体回滚
//
// 预览流程：
//  1. 取消并等待上一次预览结束（包括它的回滚）
//  2. 打开回滚分组，为轨道中（递归到嵌套播放器）所有不同的目标记录快照，收集需要重绘的图形
//  3. 由合成帧源推进调度器、场景延迟队列与粒子，强制重绘图形，并触发 OnUpdate 钩子
//  4. 播放结束的那一帧内：记录错误（不上抛）、回滚、释放取消源、清理状态，并记录最后预览的轨道名
//
// 回滚与推进一样在帧路径上执行：使用 ManualPump 时全部发生在宿主调用 Step 的 goroutine 上。
package preview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/store"
	"github.com/gonewx/playnodes/pkg/track"
	"github.com/gonewx/playnodes/pkg/undo"
)

// ErrNoPlayer 预览请求没有指定播放器
var ErrNoPlayer = errors.New("preview: no player")

// Options 会话依赖
type Options struct {
	// Runtime 预览使用的运行时，nil 时会话自建一个并在 Close 时关闭
	Runtime *playback.Runtime
	// World 需要推进延迟队列与粒子的场景，可为 nil
	World *scene.World
	// Pump 合成帧源，nil 时使用 TickerPump（帧率取自 Prefs，没有 Prefs 时取 FPS）
	Pump Pump
	// FPS 配置的预览帧率
	FPS int
	// Prefs 编辑器偏好，可为 nil
	Prefs *store.Prefs
	// Undo 回滚日志，nil 时会话自建
	Undo *undo.Log
}

// Session 一个编辑器预览会话
//
// 同一时刻最多只有一个预览在进行。
type Session struct {
	rt     *playback.Runtime
	ownsRT bool
	world  *scene.World
	pump   Pump
	prefs  *store.Prefs
	undo   *undo.Log

	// start 串行化 PreviewAnimation
	start sync.Mutex
	// loops 帧循环 goroutine
	loops errgroup.Group

	mu       sync.Mutex
	active   *run
	hooks    []*hook
	idleDone chan struct{}
}

type hook struct {
	fn func(deltaTime float64)
}

// run 一次预览的簿记
type run struct {
	name     string
	cancel   context.CancelFunc
	group    *undo.Group
	graphics []*scene.Graphic
	stopPump context.CancelFunc
	done     chan struct{}
}

// NewSession 创建预览会话
func NewSession(opts Options) *Session {
	s := &Session{
		rt:       opts.Runtime,
		world:    opts.World,
		pump:     opts.Pump,
		prefs:    opts.Prefs,
		undo:     opts.Undo,
		idleDone: make(chan struct{}),
	}
	close(s.idleDone)
	if s.rt == nil {
		s.rt = playback.NewRuntime()
		s.ownsRT = true
	}
	if s.undo == nil {
		s.undo = undo.NewLog()
	}
	if s.pump == nil {
		fps := opts.FPS
		if s.prefs != nil {
			fps = s.prefs.PreviewFPS()
		}
		s.pump = TickerPump{FPS: fps}
	}
	return s
}

// Runtime 返回预览使用的运行时
func (s *Session) Runtime() *playback.Runtime { return s.rt }

// IsPreviewing 有预览正在进行时为 true
func (s *Session) IsPreviewing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// IsPreviewingName 返回正在预览的轨道名，空闲时返回空字符串
func (s *Session) IsPreviewingName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.name
}

// Done 返回当前预览结束（回滚完成）时关闭的通道，空闲时返回已关闭的通道
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return s.idleDone
	}
	return s.active.done
}

// OnUpdate 注册每个合成帧都会调用的钩子，返回注销函数
func (s *Session) OnUpdate(fn func(deltaTime float64)) (remove func()) {
	h := &hook{fn: fn}
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.hooks {
			if other == h {
				s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
				return
			}
		}
	}
}

// StopPreviewAnimation 请求结束当前预览，只发出取消信号
// 回滚在播放链展开后由预览自身完成，需要等待时使用 Done。
func (s *Session) StopPreviewAnimation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.cancel()
	}
}

// PreviewAnimation 在 player 上预览名为 name 的轨道
//
// 已有预览时先取消并等待它回滚完毕（等待期间帧源必须继续推进），ctx 可中断这一等待。
// 预览启动后立即返回，结束由 Done 通知。
func (s *Session) PreviewAnimation(ctx context.Context, player track.TracksPlayer, name string) error {
	if player == nil {
		return ErrNoPlayer
	}
	s.start.Lock()
	defer s.start.Unlock()

	s.StopPreviewAnimation()
	select {
	case <-s.Done():
	case <-ctx.Done():
		return fmt.Errorf("waiting for previous preview: %w", ctx.Err())
	}

	r := &run{name: name, done: make(chan struct{})}
	r.group = s.undo.Begin("Preview " + name)
	if t := track.FindTrack(player.Tracks(), name); t != nil {
		for _, target := range track.CollectContexts(t) {
			r.group.Record(target)
			r.graphics = appendGraphics(r.graphics, target)
		}
	}

	playCtx, cancel := context.WithCancel(playback.NewContext(context.Background(), s.rt))
	r.cancel = cancel
	s.mu.Lock()
	s.active = r
	s.mu.Unlock()

	// 帧源在播放结束后才停止：取消要等到下一帧边界才生效
	pumpCtx, stopPump := context.WithCancel(context.Background())
	r.stopPump = stopPump
	task := player.PlayAsync(playCtx, name)
	if task.IsDone() {
		// 没有任何挂起点（如找不到轨道），在调用方 goroutine 上直接收尾
		s.finish(r, player, task.Err())
		return nil
	}

	frames := s.pump.Frames(pumpCtx)
	s.loops.Go(func() error {
		s.pumpFrames(pumpCtx, frames, r, player, task)
		return nil
	})
	return nil
}

// pumpFrames 逐帧推进，任务在某一帧内结束时，在释放该帧之前收尾
func (s *Session) pumpFrames(ctx context.Context, frames <-chan Frame, r *run, player track.TracksPlayer, task *async.Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.step(f.DeltaTime, r)
			if task.IsDone() {
				s.finish(r, player, task.Err())
				f.Done()
				return
			}
			f.Done()
		}
	}
}

// step 推进一个合成帧
func (s *Session) step(deltaTime float64, r *run) {
	s.rt.Tick(deltaTime)
	if s.world != nil {
		s.world.ProcessDeferred()
		s.world.Update(deltaTime)
	}
	for _, g := range r.graphics {
		g.SetDirty()
	}

	s.mu.Lock()
	hooks := make([]*hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()
	for _, h := range hooks {
		h.fn(deltaTime)
	}
}

// finish 回滚并清理一次预览
func (s *Session) finish(r *run, player track.TracksPlayer, err error) {
	if err != nil {
		log.Printf("[TrackEditorPreview] Error: preview %q failed: %v", r.name, err)
	}
	r.stopPump()
	r.group.Revert()
	for _, g := range r.graphics {
		g.SetDirty()
	}
	r.cancel()

	s.mu.Lock()
	if s.active == r {
		s.active = nil
	}
	s.mu.Unlock()

	if k, ok := player.(interface{ Key() string }); ok {
		if err := s.prefs.SetLastPreviewed(k.Key(), r.name); err != nil {
			log.Printf("[TrackEditorPreview] Warning: failed to save preferences: %v", err)
		}
	}
	close(r.done)
}

// Close 结束当前预览并等待回滚，会话自建的运行时随之关闭
// 帧源必须能继续推进直到预览结束。
func (s *Session) Close() {
	s.StopPreviewAnimation()
	<-s.Done()
	_ = s.loops.Wait()
	if s.ownsRT {
		s.rt.Close()
	}
}

// appendGraphics 收集目标所在对象子树中的所有图形
func appendGraphics(out []*scene.Graphic, target any) []*scene.Graphic {
	var root *scene.Object
	switch v := target.(type) {
	case *scene.Object:
		root = v
	case scene.Component:
		root = v.Object()
	}
	if root == nil {
		return out
	}
	var walk func(o *scene.Object)
	walk = func(o *scene.Object) {
		if g, ok := scene.Get[*scene.Graphic](o); ok && !containsGraphic(out, g) {
			out = append(out, g)
		}
		for _, child := range o.Children() {
			walk(child)
		}
	}
	walk(root)
	return out
}

func containsGraphic(list []*scene.Graphic, g *scene.Graphic) bool {
	for _, other := range list {
		if other == g {
			return true
		}
	}
	return false
}
