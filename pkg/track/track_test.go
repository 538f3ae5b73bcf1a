package track

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/gonewx/playnodes/pkg/animation"
	"github.com/gonewx/playnodes/pkg/async"
	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/scene"
)

// recorder 记录绑定与播放次数的测试动画
type recorder struct {
	animation.Base
	bound   []any
	plays   int
	bindErr error
	playErr error
	done    bool
}

func newRecorder(duration float64) *recorder {
	return &recorder{Base: animation.Base{Enable: true, DurationSeconds: duration}}
}

func (p *recorder) SetTarget(target any) error {
	if p.bindErr != nil {
		return p.bindErr
	}
	p.bound = append(p.bound, target)
	return nil
}

func (p *recorder) Clone() animation.Animation {
	return &recorder{Base: p.Base, bindErr: p.bindErr, playErr: p.playErr}
}

func (p *recorder) Play(ctx context.Context) error {
	p.plays++
	if p.playErr != nil {
		return p.playErr
	}
	if err := async.Delay(ctx, p.Duration()); err != nil {
		return nil
	}
	p.done = true
	return nil
}

func newRuntime(t *testing.T) (*playback.Runtime, context.Context) {
	t.Helper()
	rt := playback.NewRuntime()
	t.Cleanup(rt.Close)
	return rt, playback.NewContext(context.Background(), rt)
}

func tickUntil(t *testing.T, rt *playback.Runtime, task *async.Task, dt float64, maxTicks int) int {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		if task.IsDone() {
			return i
		}
		rt.Tick(dt)
	}
	if !task.IsDone() {
		t.Fatalf("task not finished after %d ticks", maxTicks)
	}
	return maxTicks
}

// captureLog 把标准日志重定向到缓冲区
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

// TestNode_NilContextIsNoop 目标为空的节点直接返回，不绑定也不播放
func TestNode_NilContextIsNoop(t *testing.T) {
	p := newRecorder(1)
	var nilObject *scene.Object

	for _, target := range []any{nil, nilObject} {
		node := NewNode(target, p)
		// 不需要运行时：空目标在查找运行时之前返回
		if err := node.Play(context.Background()); err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	}
	if p.plays != 0 || len(p.bound) != 0 {
		t.Errorf("Probe touched: plays=%d bound=%d", p.plays, len(p.bound))
	}
}

// TestNode_DisabledNeverBound 禁用的动画既不绑定也不播放
func TestNode_DisabledNeverBound(t *testing.T) {
	rt, ctx := newRuntime(t)
	enabled := newRecorder(0)
	disabled := newRecorder(0)
	disabled.Enable = false

	node := NewNode("target", disabled, enabled)
	task := rt.Scheduler.Go(ctx, node.Play)
	tickUntil(t, rt, task, 0.1, 5)

	if disabled.plays != 0 || len(disabled.bound) != 0 {
		t.Errorf("Disabled recorder touched: plays=%d bound=%d", disabled.plays, len(disabled.bound))
	}
	if enabled.plays != 1 || len(enabled.bound) != 1 || enabled.bound[0] != "target" {
		t.Errorf("Enabled recorder not played once against the node target: %+v", enabled.bound)
	}
}

// TestPlayer_MissingTrack 找不到轨道：一条警告，无错误，IsPlaying 保持 false
func TestPlayer_MissingTrack(t *testing.T) {
	_, ctx := newRuntime(t)
	buf := captureLog(t)

	inactive := NewTrack("Close", NewNode("x", newRecorder(0)))
	inactive.Active = false
	player := NewPlayerCollection(NewTrack("Open"), inactive)

	task := player.PlayAsync(ctx, "Close")
	if !task.IsDone() || task.Err() != nil {
		t.Fatalf("Expected immediate success, done=%v err=%v", task.IsDone(), task.Err())
	}
	if player.IsPlaying() {
		t.Error("IsPlaying should stay false")
	}
	if n := strings.Count(buf.String(), "not found"); n != 1 {
		t.Errorf("Expected exactly one warning, got %d: %q", n, buf.String())
	}
}

// TestPlayer_EmptyTrack 所有节点都没有动画的轨道立即完成
func TestPlayer_EmptyTrack(t *testing.T) {
	_, ctx := newRuntime(t)
	player := NewPlayerCollection(NewTrack("Idle", NewNode("a"), NewNode("b")))

	task := player.PlayAsync(ctx, "Idle")
	if !task.IsDone() || task.Err() != nil {
		t.Fatalf("Expected immediate completion, done=%v err=%v", task.IsDone(), task.Err())
	}
	if player.IsPlaying() {
		t.Error("IsPlaying should be false afterwards")
	}
}

// TestPlayer_IsPlayingWhileInFlight IsPlaying 在播放期间为 true，重叠播放时直到最后一个结束
func TestPlayer_IsPlayingWhileInFlight(t *testing.T) {
	rt, ctx := newRuntime(t)
	player := NewPlayerCollection(
		NewTrack("Short", NewNode("a", newRecorder(0.2))),
		NewTrack("Long", NewNode("b", newRecorder(0.4))),
	)

	long := player.PlayAsync(ctx, "Long")
	short := player.PlayAsync(ctx, "Short")
	if !player.IsPlaying() {
		t.Fatal("IsPlaying should be true during playback")
	}

	tickUntil(t, rt, short, 0.1, 10)
	if !player.IsPlaying() {
		t.Error("IsPlaying should stay true while the long play runs")
	}
	tickUntil(t, rt, long, 0.1, 10)
	if player.IsPlaying() {
		t.Error("IsPlaying should be false after every play ended")
	}
}

// newOpenScene 两个节点三个对象的 "Open" 场景
func newOpenScene() (*scene.Graphic, *scene.Transform, *Track) {
	w := scene.NewWorld()
	panel := w.NewObject("Panel", nil)
	graphic := scene.Add(panel, scene.NewGraphic(100, 50))
	icon := w.NewObject("Icon", nil)
	transform := scene.Add(icon, scene.NewTransform())

	fade := animation.NewFadeGraphic()
	zero := 0.0
	fade.From = &zero
	fade.To = 1
	fade.DurationSeconds = 0.3

	move := animation.NewMoveTransform()
	move.From = &scene.Vec3{}
	move.To = scene.Vec3{Y: 100}
	move.DurationSeconds = 0.5

	return graphic, transform, NewTrack("Open",
		NewNode(graphic, fade),
		NewNode(icon, move),
	)
}

// TestTrack_OpenScenario 两个节点并发：总时长为最大值而不是总和
func TestTrack_OpenScenario(t *testing.T) {
	rt, ctx := newRuntime(t)
	graphic, transform, open := newOpenScene()
	player := NewPlayerCollection(open)

	task := player.PlayAsync(ctx, "Open")
	ticks := tickUntil(t, rt, task, 0.1, 20)

	if err := task.Err(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ticks < 5 || ticks > 6 {
		t.Errorf("Expected ~5 ticks (max of 0.3s and 0.5s), got %d", ticks)
	}
	if graphic.Alpha() != 1 {
		t.Errorf("Expected panel alpha 1, got %v", graphic.Alpha())
	}
	if transform.Position != (scene.Vec3{Y: 100}) {
		t.Errorf("Expected icon at (0, 100, 0), got %v", transform.Position)
	}
}

// TestTrack_CancelFastForwards 取消整条轨道：所有目标到达终值且不报错
func TestTrack_CancelFastForwards(t *testing.T) {
	rt, ctx := newRuntime(t)
	graphic, transform, open := newOpenScene()
	player := NewPlayerCollection(open)

	ctx, cancel := context.WithCancel(ctx)
	task := player.PlayAsync(ctx, "Open")
	rt.Tick(0.1)
	cancel()
	rt.Tick(0.016)

	if !task.IsDone() || task.Err() != nil {
		t.Fatalf("Expected clean completion, done=%v err=%v", task.IsDone(), task.Err())
	}
	if graphic.Alpha() != 1 || transform.Position != (scene.Vec3{Y: 100}) {
		t.Errorf("Expected end values, alpha=%v pos=%v", graphic.Alpha(), transform.Position)
	}
	if player.IsPlaying() {
		t.Error("IsPlaying should be false after cancellation")
	}
}

// TestPlayer_FirstActiveMatchWins 同名轨道取第一个激活的
func TestPlayer_FirstActiveMatchWins(t *testing.T) {
	_, ctx := newRuntime(t)
	first, second := newRecorder(0), newRecorder(0)

	inactive := NewTrack("Attack", NewNode("a", first))
	inactive.Active = false
	player := NewPlayerCollection(inactive, NewTrack("Attack", NewNode("b", second)))

	task := player.PlayAsync(ctx, "Attack")
	if task.Err() != nil {
		t.Fatal(task.Err())
	}
	if first.plays != 0 || second.plays != 1 {
		t.Errorf("Expected only the second track to play, got first=%d second=%d", first.plays, second.plays)
	}
}

// TestNode_FailureIsolated 一个动画失败不会中断兄弟动画
func TestNode_FailureIsolated(t *testing.T) {
	rt, ctx := newRuntime(t)
	errBoom := errors.New("target destroyed")
	failing := newRecorder(0)
	failing.playErr = errBoom
	sibling := newRecorder(0.3)

	player := NewPlayerCollection(NewTrack("Hit", NewNode("a", failing, sibling)))
	task := player.PlayAsync(ctx, "Hit")
	tickUntil(t, rt, task, 0.1, 10)

	if !errors.Is(task.Err(), errBoom) {
		t.Errorf("Expected joined error to contain errBoom, got %v", task.Err())
	}
	if !sibling.done {
		t.Error("Sibling should have finished")
	}
}

// TestNode_BindFailure 绑定失败：已启动的动画照常结束，返回类型错误
func TestNode_BindFailure(t *testing.T) {
	rt, ctx := newRuntime(t)
	started := newRecorder(0.2)
	fade := animation.NewFadeGraphic()
	never := newRecorder(0)

	w := scene.NewWorld()
	obj := w.NewObject("Icon", nil)
	scene.Add(obj, scene.NewTransform())

	node := NewNode(obj, started, fade, never)
	task := rt.Scheduler.Go(ctx, node.Play)
	tickUntil(t, rt, task, 0.1, 10)

	if !errors.Is(task.Err(), animation.ErrTargetType) {
		t.Errorf("Expected ErrTargetType, got %v", task.Err())
	}
	if !started.done {
		t.Error("Animation started before the failure should complete")
	}
	if never.plays != 0 {
		t.Error("Animations after the failing bind should not start")
	}
}

// TestNode_PinOverrides 钉号覆盖目标与终值
func TestNode_PinOverrides(t *testing.T) {
	rt, ctx := newRuntime(t)
	w := scene.NewWorld()
	authored := w.NewObject("Authored", nil)
	scene.Add(authored, scene.NewTransform())
	runtimeTarget := w.NewObject("Spawned", nil)
	scene.Add(runtimeTarget, scene.NewTransform())

	move := animation.NewMoveTransform()
	move.PinID = 3
	move.To = scene.Vec3{X: 1}

	pins := playback.NewPins()
	pins.SetTarget(3, runtimeTarget)
	pins.SetValue(3, scene.Vec3{X: 7})

	player := NewPlayerCollection(NewTrack("Spawn", NewNode(authored, move)))
	task := player.PlayAsync(playback.WithPins(ctx, pins), "Spawn")
	tickUntil(t, rt, task, 0.1, 5)

	if got := runtimeTarget.Transform().Position; got != (scene.Vec3{X: 7}) {
		t.Errorf("Expected pinned target at (7, 0, 0), got %v", got)
	}
	if got := authored.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Authored target must stay untouched, got %v", got)
	}
}

// TestRetarget 绑定列表与节点按声明顺序一一对应
func TestRetarget(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, ctx := newRuntime(t)
		r := NewRetargetPlayerCollection([]*Track{
			NewTrack("A", NewNode(nil, newRecorder(0)), NewNode(nil, newRecorder(0))),
			NewTrack("B", NewNode(nil, newRecorder(0))),
		}, []any{"x", "y"})

		task := r.PlayAsync(ctx, "A")
		if !errors.Is(task.Err(), ErrBindingOutOfRange) {
			t.Errorf("Expected ErrBindingOutOfRange, got %v", task.Err())
		}
		for _, tr := range r.Tracks() {
			for _, n := range tr.Nodes {
				if n.Context != nil {
					t.Error("No node may be rebound when the list is too short")
				}
			}
		}
	})

	t.Run("exact", func(t *testing.T) {
		_, ctx := newRuntime(t)
		a1, a2, b1 := newRecorder(0), newRecorder(0), newRecorder(0)
		inactive := NewTrack("B", NewNode(nil, b1))
		inactive.Active = false
		r := NewRetargetPlayerCollection([]*Track{
			NewTrack("A", NewNode(nil, a1), NewNode(nil, a2)),
			inactive,
		}, []any{"x", "y", "z"})

		if err := r.PlayAsync(ctx, "A").Err(); err != nil {
			t.Fatal(err)
		}
		if a1.bound[0] != "x" || a2.bound[0] != "y" {
			t.Errorf("Unexpected bindings %v %v", a1.bound, a2.bound)
		}
		if inactive.Nodes[0].Context != "z" {
			t.Error("Inactive tracks still consume bindings in declaration order")
		}

		// 只重定向一次
		r.Bindings = nil
		if err := r.PlayAsync(ctx, "A").Err(); err != nil {
			t.Errorf("Retarget should run only once, got %v", err)
		}
	})

	t.Run("too long warns", func(t *testing.T) {
		buf := captureLog(t)
		r := NewRetargetPlayerCollection([]*Track{NewTrack("A", NewNode(nil))}, []any{"x", "y"})
		if err := r.Retarget(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "extra bindings ignored") {
			t.Errorf("Expected a warning, got %q", buf.String())
		}
	})
}

// TestPlayTrack_Nested 嵌套播放器：play_track 等待子轨道结束，CollectContexts 递归收集
func TestPlayTrack_Nested(t *testing.T) {
	rt, ctx := newRuntime(t)
	w := scene.NewWorld()

	door := w.NewObject("Door", nil)
	doorTransform := scene.Add(door, scene.NewTransform())
	slide := animation.NewMoveTransform()
	slide.To = scene.Vec3{X: 50}
	slide.DurationSeconds = 0.4
	doorPlayer := scene.Add(door, NewPlayer(NewTrack("Slide", NewNode(door, slide))))

	room := w.NewObject("Room", nil)
	roomGraphic := scene.Add(room, scene.NewGraphic(10, 10))
	nested := NewPlayTrack()
	nested.Track = "Slide"
	fade := animation.NewFadeGraphic()
	fade.To = 0
	fade.DurationSeconds = 0.2

	enter := NewTrack("Enter",
		NewNode(door, nested),
		NewNode(roomGraphic, fade),
		NewNode(door, newRecorder(0)),
	)
	roomPlayer := scene.Add(room, NewPlayer(enter))

	task := roomPlayer.PlayAsync(ctx, "Enter")
	if !doorPlayer.IsPlaying() {
		t.Error("Nested player should be playing")
	}
	tickUntil(t, rt, task, 0.1, 10)
	if err := task.Err(); err != nil {
		t.Fatal(err)
	}
	if doorTransform.Position != (scene.Vec3{X: 50}) || roomGraphic.Alpha() != 0 {
		t.Errorf("Unexpected end state pos=%v alpha=%v", doorTransform.Position, roomGraphic.Alpha())
	}

	contexts := CollectContexts(enter)
	if len(contexts) != 2 || contexts[0] != door || contexts[1] != roomGraphic {
		t.Errorf("Expected [door, graphic] without duplicates, got %v", contexts)
	}
	if players := Players(w); len(players) != 2 || players[0] != doorPlayer {
		t.Errorf("Unexpected players %v", players)
	}
	if roomPlayer.Key() != "Room" {
		t.Errorf("Unexpected key %q", roomPlayer.Key())
	}

	if err := nested.SetTarget(roomGraphic); !errors.Is(err, animation.ErrTargetType) {
		t.Errorf("play_track must reject non-player targets, got %v", err)
	}
}

// TestPlayer_Start PlayOnStart 指定的轨道
func TestPlayer_Start(t *testing.T) {
	_, ctx := newRuntime(t)
	p := newRecorder(0)
	player := NewPlayer(NewTrack("Intro", NewNode("x", p)))

	if err := player.Start(ctx).Err(); err != nil || p.plays != 0 {
		t.Fatalf("Start without PlayOnStart should do nothing, err=%v plays=%d", err, p.plays)
	}
	player.PlayOnStart = "Intro"
	if err := player.Start(ctx).Err(); err != nil || p.plays != 1 {
		t.Errorf("Expected intro to play once, err=%v plays=%d", err, p.plays)
	}
}

// TestPlayAsync_NoRuntime 未绑定运行时返回失败的任务
func TestPlayAsync_NoRuntime(t *testing.T) {
	player := NewPlayerCollection(NewTrack("Open"))
	task := player.PlayAsync(context.Background(), "Open")
	if !errors.Is(task.Err(), playback.ErrNoRuntime) {
		t.Errorf("Expected ErrNoRuntime, got %v", task.Err())
	}
}

// TestClip_ResolveBindings 剪辑按路径与类型解析绑定
func TestClip_ResolveBindings(t *testing.T) {
	rt, ctx := newRuntime(t)
	captureLog(t)

	w := scene.NewWorld()
	root := w.NewObject("Hud", nil)
	panel := w.NewObject("Panel", root)
	graphic := scene.Add(panel, scene.NewGraphic(10, 10))

	fade := animation.NewFadeGraphic()
	fade.To = 0.5
	clip := &Clip{
		Name:   "hud_in",
		Tracks: []*Track{NewTrack("In", NewNode(nil, fade), NewNode(nil, newRecorder(0)))},
		Bindings: []Binding{
			{Path: "Panel", Kind: scene.KindGraphic},
			{Path: "Missing", Kind: scene.KindObject},
		},
	}

	targets := clip.ResolveBindings(w, root)
	if len(targets) != 2 || targets[0] != graphic || targets[1] != nil {
		t.Fatalf("Unexpected targets %v", targets)
	}

	player := clip.Retarget(w, root)
	task := player.PlayAsync(ctx, "In")
	tickUntil(t, rt, task, 0.1, 5)
	if err := task.Err(); err != nil {
		t.Fatal(err)
	}
	if graphic.Alpha() != 0.5 {
		t.Errorf("Expected alpha 0.5, got %v", graphic.Alpha())
	}
}

// TestClip_RetargetTwoRoots 同一剪辑重定向到两个层级，两个播放器互不影响
func TestClip_RetargetTwoRoots(t *testing.T) {
	rt, ctx := newRuntime(t)

	w := scene.NewWorld()
	rootA := w.NewObject("A", nil)
	iconA := w.NewObject("Icon", rootA)
	scene.Add(iconA, scene.NewTransform())
	rootB := w.NewObject("B", nil)
	iconB := w.NewObject("Icon", rootB)
	scene.Add(iconB, scene.NewTransform())

	move := animation.NewMoveTransform()
	move.To = scene.Vec3{Y: 100}
	clip := &Clip{
		Name:     "icon_in",
		Tracks:   []*Track{NewTrack("In", NewNode(nil, move))},
		Bindings: []Binding{{Path: "Icon", Kind: scene.KindObject}},
	}

	playerA := clip.Retarget(w, rootA)
	playerB := clip.Retarget(w, rootB)
	if err := playerB.Retarget(); err != nil {
		t.Fatal(err)
	}

	task := playerA.PlayAsync(ctx, "In")
	tickUntil(t, rt, task, 0.1, 5)
	if err := task.Err(); err != nil {
		t.Fatal(err)
	}

	if got := iconA.Transform().Position; got != (scene.Vec3{Y: 100}) {
		t.Errorf("A/Icon: got %v, want (0, 100, 0)", got)
	}
	if got := iconB.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("B/Icon must not move when player A plays, got %v", got)
	}
	if clip.Tracks[0].Nodes[0].Context != nil {
		t.Error("Retargeting must not rebind the clip's own nodes")
	}
}

// TestRetarget_NilEntries nil 轨道不计数，nil 节点占用绑定位置
func TestRetarget_NilEntries(t *testing.T) {
	_, ctx := newRuntime(t)
	a1, a2 := newRecorder(0), newRecorder(0)
	r := NewRetargetPlayerCollection([]*Track{
		nil,
		NewTrack("A", NewNode(nil, a1), nil, NewNode(nil, a2)),
		nil,
	}, []any{"x", "y", "z"})

	if err := r.PlayAsync(ctx, "A").Err(); err != nil {
		t.Fatal(err)
	}
	if len(a1.bound) != 1 || a1.bound[0] != "x" || len(a2.bound) != 1 || a2.bound[0] != "z" {
		t.Errorf("Unexpected bindings %v %v", a1.bound, a2.bound)
	}
}

// TestTrack_Clone 副本的节点与动画都是新的对象
func TestTrack_Clone(t *testing.T) {
	rec := newRecorder(0.5)
	orig := NewTrack("A", NewNode("target", rec), nil)
	orig.Active = false

	c := orig.Clone()
	if c.Name != "A" || c.Active || len(c.Nodes) != 2 || c.Nodes[1] != nil {
		t.Fatalf("Unexpected clone %+v", c)
	}
	if c.Nodes[0] == orig.Nodes[0] || c.Nodes[0].Context != "target" {
		t.Error("Node must be copied with its context")
	}
	if c.Nodes[0].Animations[0] == animation.Animation(rec) {
		t.Error("Animations must be copied")
	}
	if c.Nodes[0].Animations[0].Duration() != 0.5 {
		t.Error("Clone must keep the animation settings")
	}
}
