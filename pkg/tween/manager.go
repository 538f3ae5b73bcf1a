package tween

import (
	"github.com/gonewx/playnodes/pkg/async"
)

// Manager 补间管理器
//
// 职责：
//   - 创建补间（复用已回收的句柄）
//   - 每帧推进所有播放中的补间
//   - 清理已结束的补间，可回收的放回空闲列表
//
// 管理器不是并发安全的，只能在所属调度器的任务或钩子中使用。
type Manager struct {
	sched  *async.Scheduler
	active []*Tween
	free   []*Tween
	gen    uint32
}

// NewManager 创建绑定到调度器的补间管理器
// 需要调用 Attach（或手动在每帧调用 Update）才会推进。
func NewManager(s *async.Scheduler) *Manager {
	return &Manager{sched: s}
}

// Attach 把 Update 注册为调度器的每帧钩子，返回注销函数
func (m *Manager) Attach() (detach func()) {
	return m.sched.OnUpdate(m.Update)
}

// To 创建并立即播放一个补间
//
// 参数：
//   - apply: 接收缓动后的进度（通常在 0..1 之间，回弹类缓动可能越界）
//   - duration: 插值时长（秒）
func (m *Manager) To(apply func(p float64), duration float64) *Tween {
	var t *Tween
	if n := len(m.free); n > 0 {
		t = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		t = &Tween{m: m}
	}
	m.gen++
	t.gen = m.gen
	t.pooled = false
	t.reset(apply, duration)
	m.track(t)
	return t
}

func (m *Manager) track(t *Tween) {
	for _, other := range m.active {
		if other == t {
			return
		}
	}
	m.active = append(m.active, t)
}

// Update 推进所有播放中的补间 deltaTime 秒
func (m *Manager) Update(deltaTime float64) {
	snapshot := make([]*Tween, len(m.active))
	copy(snapshot, m.active)
	for _, t := range snapshot {
		if t.state == StatePlaying {
			t.advance(deltaTime)
		}
	}
	m.compact()
}

// compact 移除已结束的补间
func (m *Manager) compact() {
	kept := m.active[:0]
	for _, t := range m.active {
		if t.IsActive() {
			kept = append(kept, t)
			continue
		}
		if t.recyclable {
			t.pooled = true
			t.apply = nil
			t.onStart = nil
			t.onComplete = nil
			m.free = append(m.free, t)
		}
	}
	for i := len(kept); i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = kept
}

// Count 返回仍在生命周期内的补间数量
func (m *Manager) Count() int {
	n := 0
	for _, t := range m.active {
		if t.IsActive() {
			n++
		}
	}
	return n
}

// Pooled 返回空闲列表中可复用的句柄数量
func (m *Manager) Pooled() int {
	return len(m.free)
}

// KillAll 结束所有补间，complete 为 true 时全部跳到终点
func (m *Manager) KillAll(complete bool) {
	snapshot := make([]*Tween, len(m.active))
	copy(snapshot, m.active)
	for _, t := range snapshot {
		t.Kill(complete)
	}
	m.compact()
}
