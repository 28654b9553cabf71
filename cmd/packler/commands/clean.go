package commands

import (
	"context"

	"git.home.luguber.info/inful/packler/internal/build"
	"git.home.luguber.info/inful/packler/internal/component"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	rt, err := root.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.dispatch(g.context(), component.ActionClean, func(context.Context) error {
		return build.Clean(rt.paths)
	})
}
