package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/packler/internal/build"
	"git.home.luguber.info/inful/packler/internal/component"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/watch"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Watch bool `short:"w" help:"Keep running and rebuild when sources change"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	rt, err := root.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	orch := rt.orchestrator()
	return rt.dispatch(g.context(), component.ActionBuild, func(ctx context.Context) error {
		res, err := orch.Build(ctx)
		if err != nil {
			return err
		}
		if !b.Watch {
			return res.Err()
		}
		return rt.watch(ctx, orch)
	})
}

// watch rebuilds the asset component on source changes until ctx is done.
// Failed rebuilds are logged and do not end the loop.
func (rt *runtime) watch(ctx context.Context, orch *build.Orchestrator) error {
	root, err := component.Assets.WatchPath(rt.paths, rt.ws, rt.cfg.Components)
	if err != nil {
		return err
	}
	loop, err := watch.New(watch.Options{
		Root:     root,
		Debounce: rt.cfg.Watch.DebounceWindow(),
		Ignore:   rt.cfg.Watch.Ignore,
		Recorder: rt.recorder,
		Build: func(ctx context.Context) error {
			res, err := orch.Build(ctx)
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				slog.Warn("Rebuild incomplete", logfields.Outcome(string(res.Status)), logfields.Error(err))
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}
