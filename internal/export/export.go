// Package export hands finished runs to their output targets. Every
// exporter replaces its target atomically: a failed export leaves the
// previous output in place.
package export

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/territory-cli/internal/model"
)

// Exporter publishes a run's assignment table.
type Exporter interface {
	Name() string
	Export(ctx context.Context, res *model.RunResult) error
}

// Multi runs exporters in order and stops at the first failure.
type Multi []Exporter

// Name implements Exporter.
func (m Multi) Name() string { return "multi" }

// Export implements Exporter. Targets already written stay written; each
// target is individually atomic.
func (m Multi) Export(ctx context.Context, res *model.RunResult) error {
	if res == nil {
		return eris.New("export: nil run result")
	}
	for _, e := range m {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "export: cancelled")
		}
		if err := e.Export(ctx, res); err != nil {
			return eris.Wrapf(err, "export: %s", e.Name())
		}
		zap.L().Info("export: target written",
			zap.String("exporter", e.Name()),
			zap.String("run_id", res.Summary.RunID),
			zap.Int("assignments", len(res.Assignments)),
		)
	}
	return nil
}

// writeAtomic writes path through a temp file in the same directory,
// syncing before the rename.
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "export: create output directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return eris.Wrap(err, "export: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrap(err, "export: chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "export: rename into place")
	}
	committed = true
	return nil
}
