package preview

import (
	"context"
	"sync"
	"time"
)

// Frame 一个合成帧
type Frame struct {
	DeltaTime float64
	done      chan struct{}
}

// Done 通知帧的发送方：本帧已处理完毕
func (f Frame) Done() {
	if f.done != nil {
		close(f.done)
	}
}

// Pump 合成帧源
//
// Frames 返回的通道在 ctx 结束后不再产生帧。预览期间会话从通道中逐帧取出并推进时间，
// 处理完每一帧后调用 Frame.Done。
type Pump interface {
	Frames(ctx context.Context) <-chan Frame
}

// TickerPump 按固定帧率在独立 goroutine 中产生帧，增量时间取实际流逝的时间
type TickerPump struct {
	FPS int
	// MaxDelta 单帧增量时间上限（秒），0 表示不限制
	MaxDelta float64
}

// Frames 实现 Pump
func (p TickerPump) Frames(ctx context.Context) <-chan Frame {
	fps := p.FPS
	if fps <= 0 {
		fps = 60
	}
	out := make(chan Frame)
	go func() {
		defer close(out)
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dt := now.Sub(last).Seconds()
				last = now
				if p.MaxDelta > 0 && dt > p.MaxDelta {
					dt = p.MaxDelta
				}
				f := Frame{DeltaTime: dt, done: make(chan struct{})}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
				select {
				case <-f.done:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ManualPump 由宿主逐帧推进的帧源（宿主自己的主循环、测试）
type ManualPump struct {
	mu     sync.Mutex
	ch     chan Frame
	listen context.Context
}

// NewManualPump 创建手动帧源
func NewManualPump() *ManualPump {
	return &ManualPump{ch: make(chan Frame)}
}

// Frames 实现 Pump
func (p *ManualPump) Frames(ctx context.Context) <-chan Frame {
	p.mu.Lock()
	p.listen = ctx
	p.mu.Unlock()
	return p.ch
}

// Step 推进一帧并等待该帧处理完毕
// 没有正在进行的预览时立即返回 false。
func (p *ManualPump) Step(deltaTime float64) bool {
	p.mu.Lock()
	listen := p.listen
	p.mu.Unlock()
	if listen == nil || listen.Err() != nil {
		return false
	}

	f := Frame{DeltaTime: deltaTime, done: make(chan struct{})}
	select {
	case p.ch <- f:
	case <-listen.Done():
		return false
	}
	<-f.done
	return true
}
