// Package watch re-runs order enumeration whenever the spool directory
// changes.
package watch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// debounce batches bursts of filesystem events into one refresh.
const debounce = 500 * time.Millisecond

// Run watches dir and calls refresh after changes settle. refresh errors
// are logged, not fatal: the next change gets another chance. Run returns
// when ctx is cancelled.
func Run(ctx context.Context, dir string, refresh func(context.Context) error, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	log.Info("watching spool", zap.String("dir", dir))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("spool changed", zap.String("event", event.String()))
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-fire:
			timer = nil
			fire = nil
			if err := refresh(ctx); err != nil {
				log.Error("refresh failed", zap.Error(err))
			}
		}
	}
}
