package playback

import (
	"context"
	"fmt"
)

// MaxPin 最大的钉号，0 表示未钉住
const MaxPin = 10

// Pins 单次播放的运行时覆盖：按钉号替换动画的目标或终值
//
// 外部代码在播放前设置，动画在绑定目标、读取终值时查询。
// Pins 在一次播放期间只读，不需要加锁。
type Pins struct {
	targets map[int]any
	values  map[int]any
}

// NewPins 创建空的覆盖表
func NewPins() *Pins {
	return &Pins{
		targets: make(map[int]any),
		values:  make(map[int]any),
	}
}

func checkPin(pin int) error {
	if pin < 1 || pin > MaxPin {
		return fmt.Errorf("playback: pin %d out of range [1, %d]", pin, MaxPin)
	}
	return nil
}

// SetTarget 覆盖钉号为 pin 的动画的目标
func (p *Pins) SetTarget(pin int, target any) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	p.targets[pin] = target
	return nil
}

// SetValue 覆盖钉号为 pin 的动画的终值
func (p *Pins) SetValue(pin int, value any) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	p.values[pin] = value
	return nil
}

// Target 返回 pin 的目标覆盖，p 为 nil 或 pin 为 0 时返回 false
func (p *Pins) Target(pin int) (any, bool) {
	if p == nil || pin == 0 {
		return nil, false
	}
	v, ok := p.targets[pin]
	return v, ok
}

// Value 返回 pin 的终值覆盖
func (p *Pins) Value(pin int) (any, bool) {
	if p == nil || pin == 0 {
		return nil, false
	}
	v, ok := p.values[pin]
	return v, ok
}

type pinsKey struct{}

// WithPins 返回携带 pins 的 ctx
func WithPins(ctx context.Context, pins *Pins) context.Context {
	return context.WithValue(ctx, pinsKey{}, pins)
}

// PinsFromContext 取出 ctx 携带的覆盖表，没有时返回 nil（nil 可安全查询）
func PinsFromContext(ctx context.Context) *Pins {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(pinsKey{}).(*Pins)
	return p
}
