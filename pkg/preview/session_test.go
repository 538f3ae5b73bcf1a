package preview

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/gonewx/playnodes/pkg/animation"
	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/store"
	"github.com/gonewx/playnodes/pkg/track"
)

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

// stepUntilDone 逐帧推进直到预览结束，返回成功推进的帧数
func stepUntilDone(t *testing.T, s *Session, pump *ManualPump, dt float64) int {
	t.Helper()
	deadline := time.After(5 * time.Second)
	steps := 0
	for {
		select {
		case <-s.Done():
			return steps
		case <-deadline:
			t.Fatal("preview did not finish")
		default:
		}
		if pump.Step(dt) {
			steps++
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

type fixture struct {
	world   *scene.World
	hud     *scene.Object
	icon    *scene.Object
	graphic *scene.Graphic
	player  *track.Player
}

// newFixture Hud 对象上的播放器：Open 移动图标并淡入面板，Broken 在移动图标后绑定到错误类型的目标
func newFixture() *fixture {
	w := scene.NewWorld()
	hud := w.NewObject("Hud", nil)
	panel := w.NewObject("Panel", hud)
	graphic := scene.Add(panel, scene.NewGraphic(100, 40))
	icon := w.NewObject("Icon", hud)
	scene.Add(icon, scene.NewTransform())

	move := animation.NewMoveTransform()
	move.To = scene.Vec3{Y: 100}
	move.DurationSeconds = 0.5
	fade := animation.NewFadeGraphic()
	zero := 0.0
	fade.From = &zero
	fade.To = 1
	fade.DurationSeconds = 0.3

	nudge := animation.NewMoveTransform()
	nudge.To = scene.Vec3{X: 50}
	nudge.DurationSeconds = 0.2
	broken := animation.NewFadeGraphic()
	broken.DurationSeconds = 0.2

	player := scene.Add(hud, track.NewPlayer(
		track.NewTrack("Open", track.NewNode(icon, move), track.NewNode(graphic, fade)),
		track.NewTrack("Broken", track.NewNode(icon, nudge, broken)),
	))
	return &fixture{world: w, hud: hud, icon: icon, graphic: graphic, player: player}
}

// TestPreview_RevertsAfterCompletion 预览结束后所有修改被回滚
func TestPreview_RevertsAfterCompletion(t *testing.T) {
	f := newFixture()
	pump := NewManualPump()
	prefs := store.NewPrefs(nil)
	s := NewSession(Options{World: f.world, Pump: pump, Prefs: prefs})
	defer s.Close()

	frames := 0
	remove := s.OnUpdate(func(float64) { frames++ })
	defer remove()

	if err := s.PreviewAnimation(context.Background(), f.player, "Open"); err != nil {
		t.Fatal(err)
	}
	if !s.IsPreviewing() || s.IsPreviewingName() != "Open" {
		t.Fatalf("Expected to be previewing Open, got %v %q", s.IsPreviewing(), s.IsPreviewingName())
	}

	for i := 0; i < 2; i++ {
		pump.Step(0.125)
	}
	if y := f.icon.Transform().Position.Y; y <= 0 || y >= 100 {
		t.Errorf("Expected icon mid-flight, got y=%v", y)
	}

	stepUntilDone(t, s, pump, 0.125)

	if s.IsPreviewing() {
		t.Error("IsPreviewing should be false after completion")
	}
	if got := f.icon.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Icon position not reverted: %v", got)
	}
	if f.graphic.Alpha() != 1 {
		t.Errorf("Panel alpha not reverted: %v", f.graphic.Alpha())
	}
	if f.graphic.Redraws() == 0 {
		t.Error("Graphic should have been redrawn during preview")
	}
	if frames < 4 {
		t.Errorf("OnUpdate called %d times, expected at least 4", frames)
	}
	if got := prefs.LastPreviewed("Hud"); got != "Open" {
		t.Errorf("LastPreviewed: got %q, want Open", got)
	}
}

// TestPreview_Stop 停止预览：取消、回滚、无错误日志
func TestPreview_Stop(t *testing.T) {
	buf := captureLog(t)
	f := newFixture()
	pump := NewManualPump()
	s := NewSession(Options{World: f.world, Pump: pump})
	defer s.Close()

	if err := s.PreviewAnimation(context.Background(), f.player, "Open"); err != nil {
		t.Fatal(err)
	}
	pump.Step(0.125)
	s.StopPreviewAnimation()
	stepUntilDone(t, s, pump, 0.016)

	if got := f.icon.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Icon position not reverted: %v", got)
	}
	if strings.Contains(buf.String(), "Error") {
		t.Errorf("Stopping a preview must not log errors: %q", buf.String())
	}
}

// TestPreview_ErrorLogged 播放失败只记录日志，仍然回滚
func TestPreview_ErrorLogged(t *testing.T) {
	buf := captureLog(t)
	f := newFixture()
	pump := NewManualPump()
	s := NewSession(Options{World: f.world, Pump: pump})
	defer s.Close()

	if err := s.PreviewAnimation(context.Background(), f.player, "Broken"); err != nil {
		t.Fatal(err)
	}
	stepUntilDone(t, s, pump, 0.1)

	if !strings.Contains(buf.String(), "[TrackEditorPreview] Error") {
		t.Errorf("Expected error log, got %q", buf.String())
	}
	if got := f.icon.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Icon position not reverted: %v", got)
	}
}

// TestPreview_OverlapCancelsPrevious 新的预览先取消并等待上一个回滚完毕
func TestPreview_OverlapCancelsPrevious(t *testing.T) {
	f := newFixture()
	pump := NewManualPump()
	s := NewSession(Options{World: f.world, Pump: pump})
	defer s.Close()

	if err := s.PreviewAnimation(context.Background(), f.player, "Open"); err != nil {
		t.Fatal(err)
	}
	pump.Step(0.125)
	first := s.Done()

	errc := make(chan error, 1)
	go func() { errc <- s.PreviewAnimation(context.Background(), f.player, "Open") }()

	deadline := time.After(5 * time.Second)
	for started := false; !started; {
		select {
		case err := <-errc:
			if err != nil {
				t.Fatal(err)
			}
			started = true
		case <-deadline:
			t.Fatal("second preview did not start")
		default:
			if !pump.Step(0.016) {
				time.Sleep(time.Millisecond)
			}
		}
	}

	select {
	case <-first:
	default:
		t.Fatal("Previous preview must be finished before the next one starts")
	}
	if s.undo.Len() != 1 {
		t.Errorf("Expected exactly one open undo group, got %d", s.undo.Len())
	}

	stepUntilDone(t, s, pump, 0.125)
	if got := f.icon.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Icon position not reverted: %v", got)
	}
}

// TestPreview_PumpsWorld 预览推进场景：粒子发射器在没有主循环时也会运行
func TestPreview_PumpsWorld(t *testing.T) {
	w := scene.NewWorld()
	fx := w.NewObject("Sparks", nil)
	emitter := scene.Add(fx, scene.NewParticleEmitter(8, 0.5, 0.25))
	play := animation.NewPlayParticles()
	play.Wait = true
	player := track.NewPlayerCollection(track.NewTrack("Burst", track.NewNode(emitter, play)))

	pump := NewManualPump()
	s := NewSession(Options{World: w, Pump: pump})
	defer s.Close()

	emitted := 0
	s.OnUpdate(func(float64) {
		if n := emitter.Emitted(); n > emitted {
			emitted = n
		}
	})
	if err := s.PreviewAnimation(context.Background(), player, "Burst"); err != nil {
		t.Fatal(err)
	}
	stepUntilDone(t, s, pump, 0.125)

	if emitted != 4 {
		t.Errorf("Expected 4 particles during preview, got %d", emitted)
	}
	if emitter.Emitted() != 0 || emitter.IsAlive() {
		t.Errorf("Emitter not reverted: emitted=%d alive=%v", emitter.Emitted(), emitter.IsAlive())
	}
}

// TestPreview_MissingTrack 找不到轨道时立即结束
func TestPreview_MissingTrack(t *testing.T) {
	captureLog(t)
	f := newFixture()
	pump := NewManualPump()
	s := NewSession(Options{World: f.world, Pump: pump})
	defer s.Close()

	if err := s.PreviewAnimation(context.Background(), f.player, "Nope"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("preview of a missing track should finish on its own")
	}

	if err := s.PreviewAnimation(context.Background(), nil, "Open"); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("Expected ErrNoPlayer, got %v", err)
	}
}

// TestPreview_TickerPump 真实时钟帧源
func TestPreview_TickerPump(t *testing.T) {
	f := newFixture()
	s := NewSession(Options{World: f.world, Pump: TickerPump{FPS: 120, MaxDelta: 0.1}})
	defer s.Close()

	if err := s.PreviewAnimation(context.Background(), f.player, "Open"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("preview did not finish")
	}
	if got := f.icon.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Icon position not reverted: %v", got)
	}
}

// TestPreview_RevertOnHostFrame 宿主主循环驱动预览：回滚在宿主的 Step 中完成
// 每次 Step 返回后宿主直接读写场景，不加任何同步（go test -race 可验证）。
func TestPreview_RevertOnHostFrame(t *testing.T) {
	f := newFixture()
	pump := NewManualPump()
	s := NewSession(Options{World: f.world, Pump: pump})
	defer s.Close()

	if err := s.PreviewAnimation(context.Background(), f.player, "Open"); err != nil {
		t.Fatal(err)
	}

	frames := 0
	for s.IsPreviewing() {
		if frames > 100 {
			t.Fatal("preview did not finish")
		}
		if !pump.Step(0.125) {
			t.Fatalf("frame %d: Step found no preview while IsPreviewing was true", frames)
		}
		frames++
		// 宿主读取场景（绘制）
		_ = f.icon.Transform().Position
		_ = f.graphic.Alpha()
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed by the Step that finished the preview")
	}
	if got := f.icon.Transform().Position; got != (scene.Vec3{}) {
		t.Errorf("Icon position not reverted: %v", got)
	}
	if f.graphic.Alpha() != 1 {
		t.Errorf("Panel alpha not reverted: %v", f.graphic.Alpha())
	}
	if pump.Step(0.125) {
		t.Error("Step should report no listener once the preview has finished")
	}
}

// TestPreview_FPSFallback 没有偏好时 TickerPump 使用配置的帧率
func TestPreview_FPSFallback(t *testing.T) {
	tests := []struct {
		name  string
		prefs *store.Prefs
		fps   int
		want  int
	}{
		{"配置帧率", nil, 30, 30},
		{"偏好优先", store.NewPrefs(nil), 30, store.DefaultPreviewFPS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(Options{Prefs: tt.prefs, FPS: tt.fps})
			defer s.Close()
			p, ok := s.pump.(TickerPump)
			if !ok {
				t.Fatalf("Expected TickerPump, got %T", s.pump)
			}
			if p.FPS != tt.want {
				t.Errorf("FPS: got %d, want %d", p.FPS, tt.want)
			}
		})
	}
}
