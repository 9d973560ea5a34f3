package forecast

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the model store when modelPath changes and retrains when
// dataPath changes. Either path may be empty. It blocks until ctx is done.
//
// Parent directories are watched because SaveFile replaces the model file by
// rename, which drops watches placed on the file itself.
func (s *Service) Watch(ctx context.Context, modelPath, dataPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	targets := make(map[string]func())
	if modelPath != "" {
		path := filepath.Clean(modelPath)
		targets[path] = func() {
			gen, reloaded, err := s.reloadChanged(path)
			switch {
			case err != nil:
				s.logger.Error("model reload failed", zap.Error(err))
			case !reloaded:
				s.logger.Debug("model file unchanged since our last write", zap.String("path", path))
			default:
				s.logger.Info("models reloaded", zap.String("path", path), zap.Uint64("generation", gen))
			}
		}
	}
	if dataPath != "" {
		targets[filepath.Clean(dataPath)] = func() {
			if _, err := s.Retrain(ctx); err != nil {
				s.logger.Error("retrain on dataset change failed", zap.Error(err))
			}
		}
	}

	dirs := make(map[string]bool)
	for path := range targets {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", zap.Error(err))
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(ev.Name)
			action, watched := targets[path]
			if !watched {
				continue
			}
			s.logger.Debug("watched file changed", zap.String("path", path), zap.String("op", ev.Op.String()))

			mu.Lock()
			if t, pending := timers[path]; pending {
				t.Reset(s.opts.Debounce)
			} else {
				timers[path] = time.AfterFunc(s.opts.Debounce, func() {
					mu.Lock()
					delete(timers, path)
					mu.Unlock()
					if ctx.Err() == nil {
						action()
					}
				})
			}
			mu.Unlock()
		}
	}
}
