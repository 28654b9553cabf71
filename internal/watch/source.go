package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
)

// DefaultQueueSize bounds the queue between the notifier and the loop.
const DefaultQueueSize = 64

// Batch is a group of changed paths delivered together.
type Batch struct {
	Paths []string
	At    time.Time
}

// ChangeSource delivers change batches for everything below root. The
// returned channel is closed once ctx is done or the source fails.
type ChangeSource interface {
	Subscribe(ctx context.Context, root string) (<-chan Batch, error)
}

// FSNotifySource watches a directory tree with fsnotify. Directories created
// after subscribing are added as they appear.
type FSNotifySource struct {
	QueueSize int
}

// Subscribe starts watching root recursively.
func (s FSNotifySource) Subscribe(ctx context.Context, root string) (<-chan Batch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, perrors.FileSystem("watch", root, err)
	}
	if _, err := os.Stat(root); err != nil {
		_ = w.Close()
		return nil, perrors.FileSystem("stat", root, err)
	}
	addDirsRecursive(w, root)

	size := s.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	out := make(chan Batch, size)

	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						addDirsRecursive(w, ev.Name)
					}
				}
				select {
				case out <- Batch{Paths: []string{ev.Name}, At: time.Now()}:
				default:
					// The loop is busy rebuilding; the event would be
					// debounced anyway.
					slog.Debug("Change queue full, dropping event", logfields.Path(ev.Name))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("Watcher error", logfields.Error(err))
			}
		}
	}()

	return out, nil
}

func addDirsRecursive(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}
