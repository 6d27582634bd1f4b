package shaders

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"GopherPBR/internal/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports changed SPIR-V files in a directory. Bursts of events (a
// compiler rewriting several outputs) are coalesced into one callback.
type Watcher struct {
	w        *fsnotify.Watcher
	onChange func(files []string)
	delay    time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

// Watch starts watching dir. onChange runs on the watcher goroutine with the
// sorted base names of the changed binaries.
func Watch(dir string, delay time.Duration, onChange func(files []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{w: fw, onChange: onChange, delay: delay, done: make(chan struct{})}
	w.wg.Add(1)
	go w.loop()
	logger.Log.Info("Watching shader binaries", zap.String("dir", dir))
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	changed := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".spv") || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			changed[filepath.Base(ev.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case <-fire:
			files := make([]string, 0, len(changed))
			for f := range changed {
				files = append(files, f)
			}
			sort.Strings(files)
			changed = make(map[string]struct{})
			fire = nil
			logger.Log.Info("Shader binaries changed", zap.Strings("files", files))
			w.onChange(files)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("Shader watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	err := w.w.Close()
	w.wg.Wait()
	return err
}
