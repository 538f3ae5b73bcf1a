package track

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/scene"
)

// ErrBindingOutOfRange 绑定列表比节点总数短
var ErrBindingOutOfRange = errors.New("track: binding index out of range")

// RetargetPlayerCollection 播放前把节点目标替换为外部绑定列表的播放器
//
// 绑定按轨道、节点的声明顺序一一对应（包括未激活的轨道和节点），
// 只在第一次播放时执行一次。列表长度必须与节点总数一致：
// 列表过短是配置错误，返回 ErrBindingOutOfRange，不会跳过节点。
type RetargetPlayerCollection struct {
	*PlayerCollection
	Bindings []any

	mu         sync.Mutex
	retargeted bool
}

// NewRetargetPlayerCollection 创建带绑定列表的播放器
func NewRetargetPlayerCollection(tracks []*Track, bindings []any) *RetargetPlayerCollection {
	return &RetargetPlayerCollection{
		PlayerCollection: NewPlayerCollection(tracks...),
		Bindings:         bindings,
	}
}

// Retarget 执行一次性的重新绑定，已执行过时直接返回
func (r *RetargetPlayerCollection) Retarget() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retargeted {
		return nil
	}

	tracks := r.Tracks()
	total := 0
	for _, t := range tracks {
		if t != nil {
			total += len(t.Nodes)
		}
	}
	if total > len(r.Bindings) {
		return fmt.Errorf("%w: %d nodes but only %d bindings", ErrBindingOutOfRange, total, len(r.Bindings))
	}
	if total < len(r.Bindings) {
		log.Printf("[TrackPlayer] Warning: %d bindings for %d nodes, extra bindings ignored", len(r.Bindings), total)
	}

	i := 0
	for _, t := range tracks {
		if t == nil {
			continue
		}
		for _, node := range t.Nodes {
			if node != nil {
				node.Context = r.Bindings[i]
			}
			i++
		}
	}
	r.retargeted = true
	return nil
}

// Play 重新绑定后在当前任务中播放
func (r *RetargetPlayerCollection) Play(ctx context.Context, name string) error {
	if err := r.Retarget(); err != nil {
		return err
	}
	return r.PlayerCollection.Play(ctx, name)
}

// PlayAsync 重新绑定后以任务方式播放，绑定失败时返回已失败的任务
func (r *RetargetPlayerCollection) PlayAsync(ctx context.Context, name string) *async.Task {
	if err := r.Retarget(); err != nil {
		return async.Failed(err)
	}
	return r.PlayerCollection.PlayAsync(ctx, name)
}

// Binding 剪辑中的一个具名、带类型的对象路径绑定
type Binding struct {
	Path string
	Kind string
}

// Clip 可重定向到不同场景层级的轨道集合
type Clip struct {
	Name     string
	Tracks   []*Track
	Bindings []Binding
}

// ResolveBindings 在 root 下（root 为 nil 时在整个场景中）解析所有绑定
// 找不到的路径解析为 nil（对应节点播放时什么也不做），并记录警告。
func (c *Clip) ResolveBindings(w *scene.World, root *scene.Object) []any {
	targets := make([]any, len(c.Bindings))
	for i, b := range c.Bindings {
		var o *scene.Object
		if root != nil {
			o = root.Find(b.Path)
		} else {
			o = w.Find(b.Path)
		}
		if o == nil {
			log.Printf("[Clip] Warning: clip %q binding %d: object %q not found", c.Name, i, b.Path)
			continue
		}
		target, ok := scene.ComponentByKind(o, b.Kind)
		if !ok {
			log.Printf("[Clip] Warning: clip %q binding %d: %q has no %s", c.Name, i, b.Path, b.Kind)
			continue
		}
		targets[i] = target
	}
	return targets
}

// Retarget 创建重定向到 root 下对象的播放器
// 播放器持有轨道的独立副本，同一剪辑可以重定向到多个层级。
func (c *Clip) Retarget(w *scene.World, root *scene.Object) *RetargetPlayerCollection {
	return NewRetargetPlayerCollection(CloneTracks(c.Tracks), c.ResolveBindings(w, root))
}
