package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/packler/internal/component"
	"git.home.luguber.info/inful/packler/internal/config"
	"git.home.luguber.info/inful/packler/internal/deploy"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/retry"
	"git.home.luguber.info/inful/packler/internal/storage"
)

// DeployCmd implements the 'deploy' command.
type DeployCmd struct {
	Dev bool `help:"Push the short development CORS max-age instead of the configured one"`
}

func (d *DeployCmd) Run(g *Global, root *CLI) error {
	rt, err := root.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.dispatch(g.context(), component.ActionDeploy, func(ctx context.Context) error {
		if !rt.cfg.HasBucket() {
			return perrors.BucketNotConfigured()
		}
		bucket, err := storage.Open(rt.cfg.Bucket)
		if err != nil {
			return err
		}

		maxAge := rt.cfg.Bucket.CORSMaxAge
		if d.Dev {
			maxAge = config.DevCORSMaxAge
		}
		deployer := deploy.New(bucket, deploy.Options{
			DistRoot:       rt.paths.DistRoot,
			AllowedOrigins: rt.cfg.Bucket.AllowedOrigins,
			CORSMaxAge:     maxAge,
			Policy:         retry.FromConfig(rt.cfg.Retry),
			Recorder:       rt.recorder,
		})

		res, report, err := deployer.Run(ctx, rt.orchestrator())
		if err != nil {
			return err
		}
		slog.Info("Deploy finished",
			logfields.Bucket(bucket.Name()),
			logfields.Outcome(string(res.Status)),
			logfields.Count(len(report.Uploaded)),
			slog.Int("failed", len(report.Failures)))
		if err := res.Err(); err != nil {
			return err
		}
		return report.Err()
	})
}
