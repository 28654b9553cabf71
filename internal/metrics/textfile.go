package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fsutil"
)

// WriteTextfile writes every metric in reg to path in the text exposition
// format read by the node exporter textfile collector. An empty path is a no-op.
func WriteTextfile(reg *prom.Registry, path string) error {
	if reg == nil || path == "" {
		return nil
	}
	if err := fsutil.EnsureParent(path); err != nil {
		return err
	}
	if err := prom.WriteToTextfile(path, reg); err != nil {
		return perrors.FileSystem("write_metrics", path, err)
	}
	return nil
}
