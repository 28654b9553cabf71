// Package watch rebuilds assets when their sources change.
//
// The loop has two states. While idle, a relevant change triggers a
// synchronous rebuild. For one debounce window after that rebuild finishes,
// further changes are discarded, not deferred.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/metrics"
)

// DefaultDebounce is the minimum time between a rebuild and acting on the
// next change.
const DefaultDebounce = 2 * time.Second

// Clock abstracts time for debounce decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// BuildFunc runs one rebuild. An error is logged and watching continues.
type BuildFunc func(ctx context.Context) error

// Options configures a Loop.
type Options struct {
	Root     string
	Source   ChangeSource
	Build    BuildFunc
	Debounce time.Duration
	Ignore   []string // doublestar globs relative to Root
	Clock    Clock
	Recorder metrics.Recorder
}

// Loop is the debounced watch-rebuild loop.
type Loop struct {
	opts Options
}

// New validates opts and creates a loop. Root is made absolute.
func New(opts Options) (*Loop, error) {
	if err := ValidatePatterns(opts.Ignore); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, perrors.FileSystem("abs", opts.Root, err)
	}
	opts.Root = root
	if opts.Source == nil {
		opts.Source = FSNotifySource{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Loop{opts: opts}, nil
}

// Run blocks until ctx is done or the change source closes. Rebuilds never
// overlap: the next batch is only read after the current build returns.
func (l *Loop) Run(ctx context.Context) error {
	events, err := l.opts.Source.Subscribe(ctx, l.opts.Root)
	if err != nil {
		return err
	}
	log := slog.With(logfields.Path(l.opts.Root))
	log.Info("Watching for changes", slog.Duration("debounce", l.opts.Debounce))

	last := l.opts.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info("Watch stopped")
			return nil
		case batch, ok := <-events:
			if !ok {
				log.Info("Change source closed")
				return nil
			}
			changed := l.relevant(batch)
			if len(changed) == 0 {
				continue
			}
			if l.opts.Clock.Now().Sub(last) <= l.opts.Debounce {
				l.opts.Recorder.IncWatchEvent(false)
				log.Debug("Change inside debounce window, discarding", logfields.Count(len(changed)))
				continue
			}

			l.opts.Recorder.IncWatchEvent(true)
			log.Info("Change detected, rebuilding", logfields.LogicalPath(changed[0]), logfields.Count(len(changed)))
			if err := l.opts.Build(ctx); err != nil {
				log.Error("Rebuild failed", logfields.Error(err))
			}
			last = l.opts.Clock.Now()
		}
	}
}

// relevant returns the batch paths, relative to the root, that are not
// ignored.
func (l *Loop) relevant(b Batch) []string {
	out := make([]string, 0, len(b.Paths))
	for _, p := range b.Paths {
		rel := p
		if filepath.IsAbs(p) {
			if r, err := filepath.Rel(l.opts.Root, p); err == nil {
				rel = r
			}
		}
		rel = filepath.ToSlash(rel)
		if ignored(rel, l.opts.Ignore) {
			continue
		}
		out = append(out, rel)
	}
	return out
}
