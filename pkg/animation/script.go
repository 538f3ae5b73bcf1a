package animation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/scene"
)

// 脚本可读写的变量
//
//	x y z       位置        rx ry rz  旋转        sx sy sz  缩放
//	r g b a     图形颜色    alpha     CanvasGroup 透明度
//	rate        发射速率    emit      本帧额外发射的粒子数（只写）
//	t           进度 0..1   dt        帧间隔（只读）
var scriptVars = []string{
	"x", "y", "z", "rx", "ry", "rz", "sx", "sy", "sz",
	"r", "g", "b", "a", "alpha", "rate", "emit", "t", "dt",
}

// scriptTimeout 单次脚本运行的时间上限
const scriptTimeout = time.Second

// Script 用 tengo 脚本描述的动画
//
// Duration 为 0 时脚本在延时结束后以 t=1 运行一次；
// 否则每帧运行一次直到 t 到达 1。取消时以 t=1 再运行一次然后结束。
//
// 示例：
//
//	y = 100 * t
//	alpha = 1 - t
type Script struct {
	Base   `yaml:",inline"`
	Source string `yaml:"source"`

	mu       sync.Mutex
	compiled *tengo.Compiled
	target   *scene.Object
}

// NewScript 创建脚本动画
func NewScript() *Script {
	return &Script{Base: Base{Enable: true}}
}

// Clone 复制配置，已编译的脚本与原动画共用
func (a *Script) Clone() Animation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &Script{Base: a.Base, Source: a.Source, compiled: a.compiled}
}

// SetTarget 接受对象或组件（取其所属对象）
func (a *Script) SetTarget(target any) error {
	if c, ok := target.(scene.Component); ok && c.Object() != nil {
		a.target = c.Object()
		return nil
	}
	o, err := Bind[*scene.Object](target)
	if err != nil {
		return err
	}
	a.target = o
	return nil
}

// compile 编译一次，之后每次播放使用副本
func (a *Script) compile() (*tengo.Compiled, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.compiled != nil {
		return a.compiled.Clone(), nil
	}

	script := tengo.NewScript([]byte(a.Source))
	for _, name := range scriptVars {
		if err := script.Add(name, 0.0); err != nil {
			return nil, err
		}
	}
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}
	a.compiled = compiled
	return compiled.Clone(), nil
}

// Play 播放
func (a *Script) Play(ctx context.Context) error {
	o := a.target
	if o == nil {
		return errUnbound(a)
	}
	rt, err := playback.FromContext(ctx)
	if err != nil {
		return err
	}
	compiled, err := a.compile()
	if err != nil {
		return err
	}

	return RunDelayed(ctx, a.Delay(), func(ctx context.Context) error {
		duration := a.Duration()
		if duration <= 0 {
			return a.step(compiled, o, 1, 0)
		}
		elapsed, dt := 0.0, 0.0
		for {
			progress := math.Min(elapsed/duration, 1)
			if err := a.step(compiled, o, progress, dt); err != nil {
				return err
			}
			if progress >= 1 {
				return nil
			}
			if err := async.NextFrame(ctx); err != nil {
				if canceled(ctx, err) {
					// 快进到终点
					return a.step(compiled, o, 1, 0)
				}
				return err
			}
			dt = rt.Scheduler.DeltaTime()
			elapsed += dt
		}
	})
}

// step 把目标状态写入脚本变量，运行脚本，再把结果写回目标
func (a *Script) step(c *tengo.Compiled, o *scene.Object, progress, dt float64) error {
	vars := readTarget(o)
	vars["t"] = progress
	vars["dt"] = dt
	vars["emit"] = 0
	for name, v := range vars {
		if err := c.Set(name, v); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithTimeout(context.Background(), scriptTimeout)
	defer cancel()
	if err := c.RunContext(runCtx); err != nil {
		return fmt.Errorf("run script on %s: %w", o.Path(), err)
	}
	writeTarget(o, c)
	return nil
}

func readTarget(o *scene.Object) map[string]float64 {
	vars := make(map[string]float64, len(scriptVars))
	if t := o.Transform(); t != nil {
		vars["x"], vars["y"], vars["z"] = t.Position.X, t.Position.Y, t.Position.Z
		vars["rx"], vars["ry"], vars["rz"] = t.Rotation.X, t.Rotation.Y, t.Rotation.Z
		vars["sx"], vars["sy"], vars["sz"] = t.Scale.X, t.Scale.Y, t.Scale.Z
	}
	if g, ok := scene.Get[*scene.Graphic](o); ok {
		vars["r"], vars["g"], vars["b"], vars["a"] = g.Color.R, g.Color.G, g.Color.B, g.Color.A
	}
	if cg, ok := scene.Get[*scene.CanvasGroup](o); ok {
		vars["alpha"] = cg.Alpha
	}
	if p, ok := scene.Get[*scene.ParticleEmitter](o); ok {
		vars["rate"] = p.Rate
	}
	return vars
}

func writeTarget(o *scene.Object, c *tengo.Compiled) {
	get := func(name string) float64 { return c.Get(name).Float() }
	if t := o.Transform(); t != nil {
		t.Position = scene.Vec3{X: get("x"), Y: get("y"), Z: get("z")}
		t.Rotation = scene.Vec3{X: get("rx"), Y: get("ry"), Z: get("rz")}
		t.Scale = scene.Vec3{X: get("sx"), Y: get("sy"), Z: get("sz")}
	}
	if g, ok := scene.Get[*scene.Graphic](o); ok {
		g.Color = scene.Color{R: get("r"), G: get("g"), B: get("b"), A: get("a")}
	}
	if cg, ok := scene.Get[*scene.CanvasGroup](o); ok {
		cg.Alpha = get("alpha")
	}
	if p, ok := scene.Get[*scene.ParticleEmitter](o); ok {
		p.Rate = get("rate")
		if n := c.Get("emit").Int(); n > 0 {
			p.Emit(n)
		}
	}
}
