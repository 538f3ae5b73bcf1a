// Package async 提供帧驱动的协作式任务调度
//
// 每个任务运行在独立的 goroutine 中，但同一时刻只有一个任务在执行：
// 任务只在挂起点（Delay / NextFrame / Task.Await / WhenAll）交出控制权，
// 由驱动方（Tick，或在任务外部调用的 Go）恢复下一个就绪任务。
// 这样动画代码可以写成顺序的阻塞调用，而对场景对象的修改仍然是串行的。
//
// 驱动方式：
//   - 运行时：宿主每帧调用 Tick(deltaTime)（如 ebiten 的 Update）
//   - 编辑器预览：合成的帧泵在独立 goroutine 中调用 Tick
//   - 测试：手动调用 Tick，时间完全确定
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
)

// ErrNotInTask 表示挂起操作没有在调度任务内调用
var ErrNotInTask = errors.New("async: not called from a scheduled task")

// timeEpsilon 累计帧时间的浮点误差容差（秒）
const timeEpsilon = 1e-9

// PanicError 任务函数 panic 时作为任务结果返回
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async: task panicked: %v", e.Value)
}

// fiber 一个被调度的 goroutine
type fiber struct {
	s      *Scheduler
	id     uint64
	resume chan error

	// 挂起时登记：可取消等待的上下文，以及从等待队列中摘除自身的函数
	waitCtx context.Context
	unlink  func()
}

type wakeup struct {
	f   *fiber
	err error
}

type sleeper struct {
	f   *fiber
	at  float64
	seq uint64
}

type hook struct {
	fn func(deltaTime float64)
}

// Scheduler 帧驱动的协作式调度器
//
// 零值不可用，请使用 NewScheduler 创建。
type Scheduler struct {
	driveMu sync.Mutex // 同一时刻只允许一个驱动方
	mu      sync.Mutex // 保护以下队列与计数

	now       float64
	deltaTime float64
	frame     uint64
	seq       uint64
	nextID    uint64
	live      int

	runnable     []wakeup
	sleepers     []*sleeper
	frameWaiters []*fiber
	parked       map[*fiber]struct{}
	hooks        []*hook

	yield chan struct{}
}

// NewScheduler 创建调度器，时间从 0 开始
func NewScheduler() *Scheduler {
	return &Scheduler{
		parked: make(map[*fiber]struct{}),
		yield:  make(chan struct{}),
	}
}

type fiberKey struct{}

func currentFiber(ctx context.Context) *fiber {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fiberKey{}).(*fiber)
	return f
}

// InTask 报告 ctx 是否属于本调度器的某个任务
func (s *Scheduler) InTask(ctx context.Context) bool {
	f := currentFiber(ctx)
	return f != nil && f.s == s
}

// Now 返回累计的帧时间（秒）
func (s *Scheduler) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// DeltaTime 返回最近一次 Tick 的帧间隔（秒）
func (s *Scheduler) DeltaTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltaTime
}

// Frame 返回已经执行的 Tick 次数
func (s *Scheduler) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Live 返回尚未结束的任务数量
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Go 以任务方式启动 fn
//
// 在任务外部调用时，Go 会立即驱动调度器，直到所有就绪任务再次挂起，
// 因此 fn 在第一个挂起点之前的部分会同步执行完毕。
// 在任务内部调用时，子任务只是进入就绪队列，待调用方挂起后才开始执行。
//
// 注意：不要在任务内部对返回的 Task 调用 Wait，应使用 Await 或 WhenAll。
func (s *Scheduler) Go(ctx context.Context, fn func(ctx context.Context) error) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	t := newTask(s)

	s.mu.Lock()
	s.nextID++
	f := &fiber{s: s, id: s.nextID, resume: make(chan error)}
	s.live++
	s.runnable = append(s.runnable, wakeup{f: f})
	s.mu.Unlock()

	fctx := context.WithValue(ctx, fiberKey{}, f)
	go s.run(f, fctx, t, fn)

	if !s.InTask(ctx) {
		s.drive()
	}
	return t
}

func (s *Scheduler) run(f *fiber, ctx context.Context, t *Task, fn func(ctx context.Context) error) {
	<-f.resume
	err := invoke(ctx, fn)

	s.mu.Lock()
	s.live--
	t.finishLocked(err)
	s.mu.Unlock()

	s.yield <- struct{}{}
}

func invoke(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// Tick 推进一帧
//
// 顺序：时间前进 -> 唤醒已取消的等待 -> 唤醒到期的延时 -> 唤醒等待下一帧的任务
// -> 运行就绪任务 -> 执行 OnUpdate 钩子 -> 再次运行就绪任务。
//
// 不能在任务或钩子内部调用 Tick。
func (s *Scheduler) Tick(deltaTime float64) {
	s.driveMu.Lock()

	s.mu.Lock()
	s.now += deltaTime
	s.deltaTime = deltaTime
	s.frame++
	s.wakeCancelledLocked()

	n := 0
	for n < len(s.sleepers) && s.sleepers[n].at <= s.now+timeEpsilon {
		n++
	}
	due := s.sleepers[:n]
	s.sleepers = append([]*sleeper(nil), s.sleepers[n:]...)
	for _, sl := range due {
		s.wakeLocked(sl.f, nil)
	}

	waiting := s.frameWaiters
	s.frameWaiters = nil
	for _, f := range waiting {
		s.wakeLocked(f, nil)
	}

	hooks := make([]*hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	s.runReady()
	for _, h := range hooks {
		h.fn(deltaTime)
	}
	s.runReady()

	s.driveMu.Unlock()

	if s.hasRunnable() {
		s.drive()
	}
}

// OnUpdate 注册每帧钩子，返回注销函数
// 钩子在驱动方 goroutine 上执行，此时没有任务在运行。
func (s *Scheduler) OnUpdate(fn func(deltaTime float64)) (remove func()) {
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

// drive 在没有其他驱动方时运行就绪任务
// 如果另一个驱动方正持有调度器，它释放时会再次检查就绪队列。
func (s *Scheduler) drive() {
	for s.driveMu.TryLock() {
		s.runReady()
		s.driveMu.Unlock()
		if !s.hasRunnable() {
			return
		}
	}
}

func (s *Scheduler) hasRunnable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runnable) > 0
}

// runReady 逐个恢复就绪任务，每次等待其挂起或结束
func (s *Scheduler) runReady() {
	for {
		s.mu.Lock()
		if len(s.runnable) == 0 {
			s.mu.Unlock()
			return
		}
		w := s.runnable[0]
		s.runnable = s.runnable[1:]
		s.mu.Unlock()

		w.f.resume <- w.err
		<-s.yield
	}
}

// park 交出控制权并等待被唤醒，调用前必须已在某个等待队列中登记
func (f *fiber) park() error {
	f.s.yield <- struct{}{}
	return <-f.resume
}

func (s *Scheduler) suspendLocked(f *fiber, ctx context.Context, unlink func()) {
	f.unlink = unlink
	if ctx != nil && ctx.Done() != nil {
		f.waitCtx = ctx
		s.parked[f] = struct{}{}
	}
}

func (s *Scheduler) wakeLocked(f *fiber, err error) {
	if f.waitCtx != nil {
		delete(s.parked, f)
		f.waitCtx = nil
	}
	f.unlink = nil
	s.runnable = append(s.runnable, wakeup{f: f, err: err})
}

// wakeCancelledLocked 唤醒上下文已取消的等待者，按创建顺序排列保证确定性
func (s *Scheduler) wakeCancelledLocked() {
	var cancelled []*fiber
	for f := range s.parked {
		if f.waitCtx.Err() != nil {
			cancelled = append(cancelled, f)
		}
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].id < cancelled[j].id })
	for _, f := range cancelled {
		err := f.waitCtx.Err()
		if f.unlink != nil {
			f.unlink()
		}
		s.wakeLocked(f, err)
	}
}

func (s *Scheduler) insertSleeperLocked(sl *sleeper) {
	i := sort.Search(len(s.sleepers), func(i int) bool {
		other := s.sleepers[i]
		if other.at != sl.at {
			return other.at > sl.at
		}
		return other.seq > sl.seq
	})
	s.sleepers = append(s.sleepers, nil)
	copy(s.sleepers[i+1:], s.sleepers[i:])
	s.sleepers[i] = sl
}

func (s *Scheduler) removeSleeperLocked(sl *sleeper) {
	for i, other := range s.sleepers {
		if other == sl {
			s.sleepers = append(s.sleepers[:i], s.sleepers[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) removeFrameWaiterLocked(f *fiber) {
	for i, other := range s.frameWaiters {
		if other == f {
			s.frameWaiters = append(s.frameWaiters[:i], s.frameWaiters[i+1:]...)
			return
		}
	}
}

// Delay 挂起当前任务 seconds 秒（帧时间）
//
// 返回：
//   - nil: 延时正常结束
//   - ctx.Err(): 延时期间上下文被取消（在下一帧边界生效）
//   - ErrNotInTask: 不在任务中调用
func Delay(ctx context.Context, seconds float64) error {
	f := currentFiber(ctx)
	if f == nil {
		return ErrNotInTask
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if seconds <= 0 {
		return nil
	}

	s := f.s
	s.mu.Lock()
	s.seq++
	sl := &sleeper{f: f, at: s.now + seconds, seq: s.seq}
	s.insertSleeperLocked(sl)
	s.suspendLocked(f, ctx, func() { s.removeSleeperLocked(sl) })
	s.mu.Unlock()

	return f.park()
}

// NextFrame 挂起当前任务直到下一次 Tick
func NextFrame(ctx context.Context) error {
	f := currentFiber(ctx)
	if f == nil {
		return ErrNotInTask
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := f.s
	s.mu.Lock()
	s.frameWaiters = append(s.frameWaiters, f)
	s.suspendLocked(f, ctx, func() { s.removeFrameWaiterLocked(f) })
	s.mu.Unlock()

	return f.park()
}
