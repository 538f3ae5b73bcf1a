// Package undo 提供分组的状态回滚日志
//
// 编辑器预览在播放前为每个可能被修改的对象记录快照，播放结束后整组回滚，
// 保证预览不会留下任何副作用。
package undo

import (
	"log"
	"sync"
)

// maxGroups 日志中保留的最大分组数量，超出时丢弃最旧的分组
const maxGroups = 64

// Memento 一份可恢复的状态快照
type Memento interface {
	Restore()
}

// MementoFunc 把普通函数适配为 Memento
type MementoFunc func()

// Restore 调用 f
func (f MementoFunc) Restore() { f() }

// Recordable 可以被记录快照的对象
type Recordable interface {
	Snapshot() Memento
}

// Keyed 可选接口：多个值代表同一个底层对象时（例如同一对象上的不同组件），
// 通过 UndoKey 去重。
type Keyed interface {
	UndoKey() any
}

// Log 回滚日志
type Log struct {
	mu     sync.Mutex
	groups []*Group
	nextID int
}

// NewLog 创建空的回滚日志
func NewLog() *Log {
	return &Log{}
}

// Begin 打开一个新的分组
func (l *Log) Begin(name string) *Group {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	g := &Group{log: l, id: l.nextID, name: name, seen: make(map[any]struct{})}
	if len(l.groups) >= maxGroups {
		// 丢弃最旧的分组
		log.Printf("[Undo] Warning: dropping oldest group %q", l.groups[0].name)
		l.groups = l.groups[1:]
	}
	l.groups = append(l.groups, g)
	return g
}

// Len 返回日志中仍未回滚的分组数量
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.groups)
}

// Current 返回最近打开的分组，没有时返回 nil
func (l *Log) Current() *Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.groups) == 0 {
		return nil
	}
	return l.groups[len(l.groups)-1]
}

func (l *Log) remove(g *Group) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, other := range l.groups {
		if other == g {
			l.groups = append(l.groups[:i], l.groups[i+1:]...)
			return
		}
	}
}

// Group 一组快照，整体回滚
type Group struct {
	log  *Log
	id   int
	name string

	mu       sync.Mutex
	entries  []Memento
	seen     map[any]struct{}
	reverted bool
}

// Name 返回分组名称
func (g *Group) Name() string { return g.name }

// Len 返回已记录的快照数量
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Record 为 obj 记录快照
//
// 每个不同的对象只记录一次（后续修改以第一次记录时的状态为准）。
// 返回：是否新记录了快照。obj 不可记录、为 nil 或分组已回滚时返回 false。
func (g *Group) Record(obj any) bool {
	rec, ok := obj.(Recordable)
	if !ok || rec == nil {
		return false
	}
	key := any(rec)
	if k, ok := obj.(Keyed); ok {
		key = k.UndoKey()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reverted {
		return false
	}
	if _, dup := g.seen[key]; dup {
		return false
	}
	m := rec.Snapshot()
	if m == nil {
		return false
	}
	g.seen[key] = struct{}{}
	g.entries = append(g.entries, m)
	return true
}

// Revert 按记录的逆序恢复所有快照，并把分组从日志中移除
// 重复调用无效果。
func (g *Group) Revert() {
	g.mu.Lock()
	if g.reverted {
		g.mu.Unlock()
		return
	}
	g.reverted = true
	entries := g.entries
	g.entries = nil
	g.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		entries[i].Restore()
	}
	g.log.remove(g)
}

// Reverted 报告分组是否已回滚
func (g *Group) Reverted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reverted
}
