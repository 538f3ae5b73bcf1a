// Package track 组合动画：节点（共享同一目标的一组动画）与轨道（一组节点）
//
// 播放模型：
//   - 节点并发播放所有启用的动画，等待全部结束
//   - 轨道并发播放所有激活的节点，等待全部结束
//   - 一个动画失败不会中断兄弟动画，汇合后返回合并的错误
//
// Node.Play 与 Track.Play 必须在调度器任务中调用（通常经由播放器的 PlayAsync）。
package track

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gonewx/playnodes/pkg/animation"
	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/playback"
)

// Node 共享同一目标（Context）的一组动画
type Node struct {
	Active     bool
	Context    any
	Animations []animation.Animation
}

// NewNode 创建激活的节点
func NewNode(target any, animations ...animation.Animation) *Node {
	return &Node{Active: true, Context: target, Animations: animations}
}

// isNil 同时识别 nil 接口和装着 nil 指针的接口
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Play 播放节点
//
// Context 为空时直接返回。禁用的动画既不绑定也不播放。
// 钉号命中运行时覆盖时，用覆盖的目标/终值替代节点配置。
// 绑定失败时等待已启动的动画结束，再返回绑定错误。
func (n *Node) Play(ctx context.Context) error {
	if isNil(n.Context) {
		return nil
	}
	rt, err := playback.FromContext(ctx)
	if err != nil {
		return err
	}
	pins := playback.PinsFromContext(ctx)

	var (
		tasks   []*async.Task
		bindErr error
	)
	for i, anim := range n.Animations {
		if anim == nil || !anim.Enabled() {
			continue
		}
		if err := bind(anim, n.Context, pins); err != nil {
			bindErr = fmt.Errorf("animation %d (%T): %w", i, anim, err)
			break
		}
		tasks = append(tasks, rt.Scheduler.Go(ctx, anim.Play))
	}

	return errors.Join(bindErr, async.WhenAll(ctx, tasks...))
}

func bind(anim animation.Animation, nodeContext any, pins *playback.Pins) error {
	target := nodeContext
	pin := anim.Pin()
	if pin != 0 {
		if override, ok := pins.Target(pin); ok {
			target = override
		}
		if r, ok := anim.(animation.PinValueReceiver); ok {
			value, _ := pins.Value(pin)
			if err := r.SetPinValue(value); err != nil {
				return err
			}
		}
	}
	return anim.SetTarget(target)
}

// Track 可按名称播放的一组节点
type Track struct {
	Active bool
	Name   string
	Nodes  []*Node
}

// NewTrack 创建激活的轨道
func NewTrack(name string, nodes ...*Node) *Track {
	return &Track{Active: true, Name: name, Nodes: nodes}
}

// Play 并发播放所有激活的节点并等待全部结束
func (t *Track) Play(ctx context.Context) error {
	rt, err := playback.FromContext(ctx)
	if err != nil {
		return err
	}
	var tasks []*async.Task
	for _, node := range t.Nodes {
		if node == nil || !node.Active {
			continue
		}
		tasks = append(tasks, rt.Scheduler.Go(ctx, node.Play))
	}
	if err := async.WhenAll(ctx, tasks...); err != nil {
		return fmt.Errorf("track %q: %w", t.Name, err)
	}
	return nil
}

// Clone 复制节点及其动画，目标保持不变
func (n *Node) Clone() *Node {
	c := &Node{
		Active:     n.Active,
		Context:    n.Context,
		Animations: make([]animation.Animation, len(n.Animations)),
	}
	for i, anim := range n.Animations {
		if anim != nil {
			c.Animations[i] = anim.Clone()
		}
	}
	return c
}

// Clone 复制轨道及其所有节点
func (t *Track) Clone() *Track {
	c := &Track{Active: t.Active, Name: t.Name, Nodes: make([]*Node, len(t.Nodes))}
	for i, node := range t.Nodes {
		if node != nil {
			c.Nodes[i] = node.Clone()
		}
	}
	return c
}

// CloneTracks 复制轨道列表，nil 项保持为 nil
func CloneTracks(tracks []*Track) []*Track {
	out := make([]*Track, len(tracks))
	for i, t := range tracks {
		if t != nil {
			out[i] = t.Clone()
		}
	}
	return out
}

// NodeCount 返回节点数量（含未激活节点）
func (t *Track) NodeCount() int {
	return len(t.Nodes)
}

// FindTrack 按声明顺序返回第一个名称匹配且激活的轨道
func FindTrack(tracks []*Track, name string) *Track {
	for _, t := range tracks {
		if t != nil && t.Active && t.Name == name {
			return t
		}
	}
	return nil
}

// CollectContexts 收集轨道中所有节点的目标（去重，保持首次出现的顺序）
// 目标本身是播放器时，递归收集该播放器所有轨道的目标。
func CollectContexts(t *Track) []any {
	c := &collector{
		seen:   make(map[any]struct{}),
		tracks: make(map[*Track]struct{}),
	}
	c.track(t)
	return c.result
}

type collector struct {
	seen   map[any]struct{}
	tracks map[*Track]struct{}
	result []any
}

func (c *collector) track(t *Track) {
	if t == nil {
		return
	}
	if _, done := c.tracks[t]; done {
		return
	}
	c.tracks[t] = struct{}{}

	for _, node := range t.Nodes {
		if node == nil || isNil(node.Context) {
			continue
		}
		c.add(node.Context)
		if nested := playerOf(node.Context); nested != nil {
			for _, nt := range nested.Tracks() {
				c.track(nt)
			}
		}
	}
}

func (c *collector) add(v any) {
	if !reflect.TypeOf(v).Comparable() {
		c.result = append(c.result, v)
		return
	}
	if _, dup := c.seen[v]; dup {
		return
	}
	c.seen[v] = struct{}{}
	c.result = append(c.result, v)
}
