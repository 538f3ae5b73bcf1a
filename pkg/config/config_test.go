package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gonewx/playnodes/pkg/playback"
	"github.com/gonewx/playnodes/pkg/scene"
	"github.com/gonewx/playnodes/pkg/store"
	"github.com/gonewx/playnodes/pkg/track"
)

const hudClip = `
name: hud
tracks:
  - name: Open
    nodes:
      - target: Hud/Panel
        kind: graphic
        animations:
          - type: fade_graphic
            from: 0
            to: 1
            duration: 0.25
      - target: Hud/Icon
        kind: transform
        animations:
          - type: move_transform
            to: [0, 100]
            duration: 0.5
          - type: set_active
            active: false
  - name: Open
    active: false
    nodes: []
`

const doorClip = `
name: door
bindings:
  - path: Leaf
    kind: transform
tracks:
  - name: Slide
    nodes:
      - animations:
          - type: move_transform
            to: 30
            relative: true
            duration: 0.25
`

const sceneYAML = `
objects:
  - name: Hud
    player:
      clip: hud
      play_on_start: Open
    children:
      - name: Panel
        graphic:
          color: "#ff0000"
          width: 100
          height: 40
      - name: Icon
        transform:
          position: [10, 0]
  - name: Door
    player:
      clip: door
    children:
      - name: Leaf
        transform: {}
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"data/runtime.yaml":     {Data: []byte("tps: 30\ndefault_ease: OutQuad\n")},
		"data/scene.yaml":       {Data: []byte(sceneYAML)},
		"data/clips/hud.yaml":   {Data: []byte(hudClip)},
		"data/clips/door.yml":   {Data: []byte(doorClip)},
		"data/clips/README.txt": {Data: []byte("not a clip")},
	}
}

func tickUntil(t *testing.T, rt *playback.Runtime, done func() bool, dt float64, maxTicks int) {
	t.Helper()
	for i := 0; i < maxTicks && !done(); i++ {
		rt.Tick(dt)
	}
	if !done() {
		t.Fatalf("not finished after %d ticks", maxTicks)
	}
}

// TestLoadRuntimeConfig 未填写的字段使用默认值
func TestLoadRuntimeConfig(t *testing.T) {
	cfg, err := LoadRuntimeConfig(testFS(), "data/runtime.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TPS != 30 || cfg.DefaultEase != "OutQuad" {
		t.Errorf("Explicit values lost: %+v", cfg)
	}
	if cfg.PreviewFPS != 60 || cfg.MaxDelta != 0.1 {
		t.Errorf("Defaults not applied: %+v", cfg)
	}
	if cfg.ClampDelta(0.5) != 0.1 || cfg.ClampDelta(0.05) != 0.05 {
		t.Error("ClampDelta mismatch")
	}
	if _, err := LoadRuntimeConfig(testFS(), "data/missing.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestDecodeClip_Errors 剪辑校验
func TestDecodeClip_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "unknown type",
			yaml: "name: x\ntracks:\n  - name: A\n    nodes:\n      - animations:\n          - type: teleport\n",
			want: ErrUnknownAnimationType,
		},
		{
			name: "too few bindings",
			yaml: "name: x\nbindings:\n  - path: A\ntracks:\n  - name: A\n    nodes:\n      - animations: []\n      - animations: []\n",
			want: track.ErrBindingOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeClip([]byte(tt.yaml)); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := DecodeClip([]byte("tracks: []\n")); err == nil {
		t.Error("Expected error for clip without name")
	}
	if _, err := DecodeClip([]byte("name: [\n")); err == nil {
		t.Error("Expected YAML syntax error")
	}
}

// TestClipManager_Directory 目录模式：只加载 YAML，按名称索引
func TestClipManager_Directory(t *testing.T) {
	m, err := NewClipManager(testFS(), "data/clips")
	if err != nil {
		t.Fatal(err)
	}
	names := m.Names()
	if len(names) != 2 || names[0] != "door" || names[1] != "hud" {
		t.Errorf("Unexpected names %v", names)
	}
	hud, ok := m.Get("hud")
	if !ok || len(hud.Tracks) != 2 || hud.NodeCount() != 2 {
		t.Errorf("Unexpected hud clip %+v", hud)
	}
	if !mustGet(t, m, "door").Retargetable() {
		t.Error("door should be retargetable")
	}

	single, err := NewClipManager(testFS(), "data/clips/hud.yaml")
	if err != nil || single.Len() != 1 {
		t.Errorf("Single file mode failed: %v", err)
	}

	dup := testFS()
	dup["data/clips/hud_copy.yaml"] = &fstest.MapFile{Data: []byte(hudClip)}
	if _, err := NewClipManager(dup, "data/clips"); err == nil {
		t.Error("Expected duplicate clip name error")
	}
	if _, err := NewClipManager(testFS(), "data/nothing"); err == nil {
		t.Error("Expected error for missing path")
	}
}

func mustGet(t *testing.T, m *ClipManager, name string) *ClipConfig {
	t.Helper()
	c, ok := m.Get(name)
	if !ok {
		t.Fatalf("clip %s not found", name)
	}
	return c
}

// TestSceneAndPlayers 场景 + 剪辑构建，按名称播放
func TestSceneAndPlayers(t *testing.T) {
	fsys := testFS()
	cfg, w, err := LoadScene(fsys, "data/scene.yaml")
	if err != nil {
		t.Fatal(err)
	}
	clips, err := NewClipManager(fsys, "data/clips")
	if err != nil {
		t.Fatal(err)
	}
	players, err := AttachPlayers(w, cfg, clips)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 2 || players[0].Key() != "Hud" || players[1].Key() != "Door" {
		t.Fatalf("Unexpected players %v", players)
	}

	panel, _ := scene.Get[*scene.Graphic](w.Find("Hud/Panel"))
	if panel.Color != (scene.Color{R: 1, A: 1}) {
		t.Errorf("Unexpected panel color %v", panel.Color)
	}
	icon := w.Find("Hud/Icon")

	rt := playback.NewRuntime()
	defer rt.Close()
	ctx := playback.NewContext(context.Background(), rt)

	open := players[0].Start(ctx)
	slide := players[1].PlayAsync(ctx, "Slide")
	tickUntil(t, rt, func() bool { return open.IsDone() && slide.IsDone() }, 0.125, 20)

	if err := errors.Join(open.Err(), slide.Err()); err != nil {
		t.Fatal(err)
	}
	if panel.Alpha() != 1 {
		t.Errorf("Panel alpha: got %v, want 1", panel.Alpha())
	}
	if got := icon.Transform().Position; got != (scene.Vec3{X: 0, Y: 100}) {
		t.Errorf("Icon position: got %v", got)
	}
	if icon.Active() {
		t.Error("set_active should have deactivated the icon")
	}
	if got := w.Find("Door/Leaf").Transform().Position; got != (scene.Vec3{X: 30, Y: 30, Z: 30}) {
		t.Errorf("Leaf position: got %v", got)
	}
}

// TestBuildRetargetPlayer 同一剪辑重定向到不同层级
func TestBuildRetargetPlayer(t *testing.T) {
	clip, err := DecodeClip([]byte(doorClip))
	if err != nil {
		t.Fatal(err)
	}
	w := scene.NewWorld()
	var leaves []*scene.Transform
	var roots []*scene.Object
	for _, name := range []string{"DoorA", "DoorB"} {
		root := w.NewObject(name, nil)
		leaf := w.NewObject("Leaf", root)
		leaves = append(leaves, scene.Add(leaf, scene.NewTransform()))
		roots = append(roots, root)
	}

	rt := playback.NewRuntime()
	defer rt.Close()
	ctx := playback.NewContext(context.Background(), rt)

	p, err := BuildRetargetPlayer(clip, w, roots[1])
	if err != nil {
		t.Fatal(err)
	}
	task := p.PlayAsync(ctx, "Slide")
	tickUntil(t, rt, task.IsDone, 0.125, 10)
	if task.Err() != nil {
		t.Fatal(task.Err())
	}
	if leaves[0].Position != (scene.Vec3{}) || leaves[1].Position.X != 30 {
		t.Errorf("Only DoorB should move: %v %v", leaves[0].Position, leaves[1].Position)
	}
}

// TestNewClipManagerFromDB 从打包数据库加载
func TestNewClipManagerFromDB(t *testing.T) {
	db, err := store.OpenClipDB(filepath.Join(t.TempDir(), "clips.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Put("hud", []byte(hudClip)); err != nil {
		t.Fatal(err)
	}

	m, err := NewClipManagerFromDB(db)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get("hud"); !ok || m.Len() != 1 {
		t.Errorf("Expected hud clip, got %v", m.Names())
	}
	if err := m.Reload(); err != nil {
		t.Errorf("Reload without a file source should be a no-op, got %v", err)
	}

	if err := db.Put("wrong", []byte(hudClip)); err != nil {
		t.Fatal(err)
	}
	if _, err := NewClipManagerFromDB(db); err == nil {
		t.Error("Expected name mismatch error")
	}
}

// TestWatcher 写入剪辑文件会产生事件，非 YAML 文件被忽略
func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	clipPath := filepath.Join(dir, "hud.yaml")
	if err := os.WriteFile(clipPath, []byte(hudClip), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-w.Events:
		if name != clipPath {
			t.Errorf("Expected event for %s, got %s", clipPath, name)
		}
	case err := <-w.Errors:
		t.Fatal(err)
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
	}
}

// TestWatcher_TrailingDebounce 连续写入合并为一次报告，且在最后一次写入之后才报告
func TestWatcher_TrailingDebounce(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	clipPath := filepath.Join(dir, "hud.yaml")
	if err := os.WriteFile(clipPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// 两步写入：先截断，再在防抖窗口内写入完整内容
	time.Sleep(debounceWindow / 4)
	if err := os.WriteFile(clipPath, []byte(hudClip), 0o644); err != nil {
		t.Fatal(err)
	}
	written := time.Now()

	select {
	case name := <-w.Events:
		if name != clipPath {
			t.Fatalf("Expected event for %s, got %s", clipPath, name)
		}
		if elapsed := time.Since(written); elapsed < debounceWindow/2 {
			t.Errorf("Event reported %v after the final write, expected the file to settle first", elapsed)
		}
	case err := <-w.Errors:
		t.Fatal(err)
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
	}

	select {
	case name := <-w.Events:
		t.Errorf("Writes within the window must be coalesced, got extra event %s", name)
	case <-time.After(3 * debounceWindow):
	}
}
