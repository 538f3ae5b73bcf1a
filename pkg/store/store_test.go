package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/quasilyte/gdata/v2"
)

func openGdata(t *testing.T, app string) *gdata.Manager {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	m, err := gdata.Open(gdata.Config{AppName: app})
	if err != nil {
		t.Fatalf("Failed to create gdata manager: %v", err)
	}
	return m
}

// TestPrefs_Degraded nil manager：偏好只在内存中
func TestPrefs_Degraded(t *testing.T) {
	p := NewPrefs(nil)
	if p.PreviewFPS() != DefaultPreviewFPS {
		t.Errorf("PreviewFPS: got %d, want %d", p.PreviewFPS(), DefaultPreviewFPS)
	}
	if err := p.SetLastPreviewed("Hud", "Open"); err != nil {
		t.Fatalf("Degraded save should not fail: %v", err)
	}
	if got := p.LastPreviewed("Hud"); got != "Open" {
		t.Errorf("LastPreviewed: got %q, want Open", got)
	}

	var nilPrefs *Prefs
	if nilPrefs.LastPreviewed("Hud") != "" || nilPrefs.PreviewFPS() != DefaultPreviewFPS {
		t.Error("nil Prefs should behave as defaults")
	}
}

// TestPrefs_Persist 保存后重新打开能读回
func TestPrefs_Persist(t *testing.T) {
	m := openGdata(t, "playnodes_test_prefs")

	p := NewPrefs(m)
	p.SetPreviewFPS(30)
	if err := p.SetLastPreviewed("Hud/Panel", "Close"); err != nil {
		t.Fatalf("SetLastPreviewed: %v", err)
	}

	reloaded := NewPrefs(m)
	if reloaded.PreviewFPS() != 30 {
		t.Errorf("PreviewFPS: got %d, want 30", reloaded.PreviewFPS())
	}
	if got := reloaded.LastPreviewed("Hud/Panel"); got != "Close" {
		t.Errorf("LastPreviewed: got %q, want Close", got)
	}

	reloaded.SetPreviewFPS(-1)
	if reloaded.PreviewFPS() != DefaultPreviewFPS {
		t.Errorf("Non-positive fps should reset to default, got %d", reloaded.PreviewFPS())
	}
}

// TestClipDB 写入、读取、列举与删除
func TestClipDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clips.db")
	db, err := OpenClipDB(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := db.Put("hud_in", []byte("name: hud_in\n")); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("door", []byte("name: door\n")); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("", nil); err == nil {
		t.Error("Empty name should be rejected")
	}

	names, err := db.Names()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"door", "hud_in"}) {
		t.Errorf("Names: got %v", names)
	}

	if _, err := db.Get("missing"); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("Expected ErrClipNotFound, got %v", err)
	}
	if err := db.Delete("door"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	// 重新打开后数据仍在
	db, err = OpenClipDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	data, err := db.Get("hud_in")
	if err != nil || string(data) != "name: hud_in\n" {
		t.Errorf("Get after reopen: %q, %v", data, err)
	}
	if _, err := db.Get("door"); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("Deleted clip still present: %v", err)
	}
}
