package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/packler/cmd/packler/commands"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("packler"),
		kong.Description("Fingerprint, compile and deploy static assets."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := parser.Run(&commands.Global{Ctx: ctx}, cli)
	stop()

	perrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
