package async

import (
	"context"
	"errors"
	"log"
)

// Task 可等待的任务结果
type Task struct {
	s        *Scheduler
	done     chan struct{}
	err      error
	finished bool
	waiters  []*fiber
}

func newTask(s *Scheduler) *Task {
	return &Task{s: s, done: make(chan struct{})}
}

// Completed 返回一个已成功完成的任务
func Completed() *Task {
	return Failed(nil)
}

// Failed 返回一个已以 err 结束的任务，不属于任何调度器
func Failed(err error) *Task {
	t := &Task{done: make(chan struct{}), err: err, finished: true}
	close(t.done)
	return t
}

// NewCompletion 创建一个由回调结束的任务
// resolve 只有第一次调用生效，且不能在持有调度器内部锁时调用（钩子、任务内均可）。
func (s *Scheduler) NewCompletion() (*Task, func(err error)) {
	t := newTask(s)
	return t, func(err error) {
		s.mu.Lock()
		t.finishLocked(err)
		s.mu.Unlock()
	}
}

func (t *Task) finishLocked(err error) {
	if t.finished {
		return
	}
	t.finished = true
	t.err = err
	close(t.done)
	for _, f := range t.waiters {
		t.s.wakeLocked(f, nil)
	}
	t.waiters = nil
}

func (t *Task) removeWaiterLocked(f *fiber) {
	for i, other := range t.waiters {
		if other == f {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}

// Done 返回任务结束时关闭的通道
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// IsDone 报告任务是否已结束
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err 返回任务结果，任务未结束时返回 nil
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait 在任务外部阻塞等待任务结束
// 任务内部调用会使调度器死锁，请改用 Await。
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Await 在任务内部等待 t 结束
//
// 等待可以被 ctx 取消，取消在下一帧边界生效并返回 ctx.Err()。
// 在任务外部调用时退化为阻塞等待。
func (t *Task) Await(ctx context.Context) error {
	return t.await(ctx, true)
}

// join 不可取消的等待，用于结构化并发的汇合
func (t *Task) join(ctx context.Context) error {
	return t.await(ctx, false)
}

func (t *Task) await(ctx context.Context, cancellable bool) error {
	f := currentFiber(ctx)
	if f == nil || t.s == nil || f.s != t.s {
		if !cancellable {
			<-t.done
			return t.err
		}
		select {
		case <-t.done:
			return t.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s := t.s
	s.mu.Lock()
	if t.finished {
		s.mu.Unlock()
		return t.err
	}
	var waitCtx context.Context
	if cancellable {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return err
		}
		waitCtx = ctx
	}
	t.waiters = append(t.waiters, f)
	s.suspendLocked(f, waitCtx, func() { t.removeWaiterLocked(f) })
	s.mu.Unlock()

	if err := f.park(); err != nil {
		return err
	}
	return t.err
}

// Forget 不再关心任务结果，失败时记录日志
func (t *Task) Forget() {
	go func() {
		<-t.done
		if t.err != nil {
			log.Printf("[Async] Error: forgotten task failed: %v", t.err)
		}
	}()
}

// WhenAll 等待所有任务结束
//
// 一个任务失败不会中断其他任务，返回值为所有失败的合并（errors.Join），
// 全部成功时返回 nil。汇合本身不可取消，取消由各任务自行处理。
func WhenAll(ctx context.Context, tasks ...*Task) error {
	var errs []error
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if err := t.join(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
