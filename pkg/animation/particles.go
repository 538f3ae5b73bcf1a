package animation

import (
	"context"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/scene"
)

// PlayParticles 启动粒子发射器
//
// Wait 为 true 时一直等到发射结束且粒子全部消亡；等待期间被取消则停止并清除粒子。
type PlayParticles struct {
	Base `yaml:",inline"`
	Wait bool `yaml:"wait"`

	target *scene.ParticleEmitter
}

// NewPlayParticles 创建粒子播放动画
func NewPlayParticles() *PlayParticles {
	return &PlayParticles{Base: Base{Enable: true}}
}

// Clone 复制配置
func (a *PlayParticles) Clone() Animation {
	c := *a
	c.target = nil
	return &c
}

// SetTarget 目标必须是 *scene.ParticleEmitter
func (a *PlayParticles) SetTarget(target any) error {
	p, err := Bind[*scene.ParticleEmitter](target)
	if err != nil {
		return err
	}
	a.target = p
	return nil
}

// Play 播放
func (a *PlayParticles) Play(ctx context.Context) error {
	p := a.target
	if p == nil {
		return errUnbound(a)
	}
	return RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		p.Play()
		if !a.Wait {
			return nil
		}
		for p.IsAlive() {
			if err := async.NextFrame(ctx); err != nil {
				if canceled(ctx, err) {
					p.Stop(true)
				}
				return err
			}
		}
		return nil
	})
}

// StopParticles 停止粒子发射器
type StopParticles struct {
	Base  `yaml:",inline"`
	Clear bool `yaml:"clear"`

	target *scene.ParticleEmitter
}

// NewStopParticles 创建粒子停止动画
func NewStopParticles() *StopParticles {
	return &StopParticles{Base: Base{Enable: true}}
}

// Clone 复制配置
func (a *StopParticles) Clone() Animation {
	c := *a
	c.target = nil
	return &c
}

// SetTarget 目标必须是 *scene.ParticleEmitter
func (a *StopParticles) SetTarget(target any) error {
	p, err := Bind[*scene.ParticleEmitter](target)
	if err != nil {
		return err
	}
	a.target = p
	return nil
}

// Play 播放
func (a *StopParticles) Play(ctx context.Context) error {
	p := a.target
	if p == nil {
		return errUnbound(a)
	}
	return RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		p.Stop(a.Clear)
		return nil
	})
}

// EmitParticles 一次性发射固定数量的粒子
type EmitParticles struct {
	Base  `yaml:",inline"`
	Count int `yaml:"count"`

	target *scene.ParticleEmitter
	pinned override[float64]
}

// NewEmitParticles 创建粒子爆发动画
func NewEmitParticles() *EmitParticles {
	return &EmitParticles{Base: Base{Enable: true}, Count: 10}
}

// Clone 复制配置
func (a *EmitParticles) Clone() Animation {
	c := *a
	c.target, c.pinned = nil, override[float64]{}
	return &c
}

// SetTarget 目标必须是 *scene.ParticleEmitter
func (a *EmitParticles) SetTarget(target any) error {
	p, err := Bind[*scene.ParticleEmitter](target)
	if err != nil {
		return err
	}
	a.target = p
	return nil
}

// SetPinValue 覆盖发射数量
func (a *EmitParticles) SetPinValue(value any) error {
	return a.pinned.apply(value, toFloat)
}

// Play 播放
func (a *EmitParticles) Play(ctx context.Context) error {
	p := a.target
	if p == nil {
		return errUnbound(a)
	}
	count := int(a.pinned.or(float64(a.Count)))
	return RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		p.Emit(count)
		return nil
	})
}
