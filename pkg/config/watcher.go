package config

import (
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow 同一文件安静该时长后才报告，期间的连续事件合并为一次
const debounceWindow = 100 * time.Millisecond

// Watcher 监视剪辑目录，文件写入、创建、重命名或删除时通过 Events 报告文件路径
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher 监视 dirs 中的剪辑文件
func NewWatcher(dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		watcher: fw,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close 停止监视并关闭 Events 与 Errors
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
		close(w.Events)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	// pending 文件 -> 报告时间；每个新事件都把该文件的报告时间推迟到 now+debounceWindow
	pending := make(map[string]time.Time)
	timer := time.NewTimer(debounceWindow)
	timer.Stop()
	defer timer.Stop()
	armed := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsClipFile(event.Name) {
				continue
			}
			pending[event.Name] = time.Now().Add(debounceWindow)
			if !armed {
				timer.Reset(debounceWindow)
				armed = true
			}
		case now := <-timer.C:
			armed = false
			var due []string
			next := time.Time{}
			for name, at := range pending {
				if !at.After(now) {
					due = append(due, name)
					continue
				}
				if next.IsZero() || at.Before(next) {
					next = at
				}
			}
			if !next.IsZero() {
				timer.Reset(next.Sub(now))
				armed = true
			}
			sort.Strings(due)
			for _, name := range due {
				delete(pending, name)
				select {
				case w.Events <- name:
				case <-w.closeCh:
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}
