package scene

// ParticleEmitter 粒子发射器
//
// 只模拟发射时机与粒子寿命，不涉及粒子外观。
// 发射器由 World.Update 每帧推进。
type ParticleEmitter struct {
	ComponentBase

	// Rate 每秒发射的粒子数
	Rate float64
	// Duration 一个发射周期的时长（秒），Loop 为 false 时到期后停止发射
	Duration float64
	Loop     bool
	// Lifetime 单个粒子的存活时间（秒）
	Lifetime float64

	playing   bool
	age       float64
	carry     float64   // 未满一个粒子的发射累计
	emitted   int       // 已发射的粒子总数
	particles []float64 // 存活粒子的年龄
}

// NewParticleEmitter 创建发射器
func NewParticleEmitter(rate, duration, lifetime float64) *ParticleEmitter {
	return &ParticleEmitter{Rate: rate, Duration: duration, Lifetime: lifetime}
}

// Kind 返回 "particles"
func (p *ParticleEmitter) Kind() string { return KindParticles }

// Play 从头开始发射
func (p *ParticleEmitter) Play() {
	p.playing = true
	p.age = 0
	p.carry = 0
}

// Stop 停止发射，clear 为 true 时同时清除存活的粒子
func (p *ParticleEmitter) Stop(clear bool) {
	p.playing = false
	if clear {
		p.particles = p.particles[:0]
	}
}

// Emit 立即发射 n 个粒子
func (p *ParticleEmitter) Emit(n int) {
	for i := 0; i < n; i++ {
		p.particles = append(p.particles, 0)
	}
	p.emitted += n
}

// IsPlaying 报告是否正在发射
func (p *ParticleEmitter) IsPlaying() bool { return p.playing }

// IsAlive 正在发射或仍有存活粒子
func (p *ParticleEmitter) IsAlive() bool { return p.playing || len(p.particles) > 0 }

// Emitted 返回已发射的粒子总数
func (p *ParticleEmitter) Emitted() int { return p.emitted }

// Alive 返回存活粒子数量
func (p *ParticleEmitter) Alive() int { return len(p.particles) }

// Age 返回当前发射周期已经过的时间
func (p *ParticleEmitter) Age() float64 { return p.age }

func (p *ParticleEmitter) update(dt float64) {
	// 粒子老化
	kept := p.particles[:0]
	for _, age := range p.particles {
		age += dt
		if p.Lifetime <= 0 || age < p.Lifetime {
			kept = append(kept, age)
		}
	}
	p.particles = kept

	if !p.playing {
		return
	}

	step := dt
	if !p.Loop && p.Duration > 0 && p.age+step > p.Duration {
		step = p.Duration - p.age
	}
	p.age += dt
	p.carry += p.Rate * step
	if n := int(p.carry); n > 0 {
		p.carry -= float64(n)
		p.Emit(n)
	}

	if p.Duration > 0 && p.age >= p.Duration {
		if p.Loop {
			p.age -= p.Duration
		} else {
			p.playing = false
		}
	}
}

func (p *ParticleEmitter) saveState() func() {
	rate, duration, loop, lifetime := p.Rate, p.Duration, p.Loop, p.Lifetime
	playing, age, carry, emitted := p.playing, p.age, p.carry, p.emitted
	particles := append([]float64(nil), p.particles...)
	return func() {
		p.Rate, p.Duration, p.Loop, p.Lifetime = rate, duration, loop, lifetime
		p.playing, p.age, p.carry, p.emitted = playing, age, carry, emitted
		p.particles = append(p.particles[:0], particles...)
	}
}
