package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/territory-cli/internal/config"
	"github.com/sells-group/territory-cli/internal/export"
	"github.com/sells-group/territory-cli/internal/fetcher"
	"github.com/sells-group/territory-cli/internal/ingest"
	"github.com/sells-group/territory-cli/internal/metrics"
	"github.com/sells-group/territory-cli/internal/model"
	"github.com/sells-group/territory-cli/internal/monitoring"
	"github.com/sells-group/territory-cli/internal/store"
	"github.com/sells-group/territory-cli/internal/territory"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

// runOptions holds the run command's flags.
type runOptions struct {
	ZipMaster  string
	Activity   string
	SummaryOut string
	DryRun     bool
	NoAlerts   bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the territory assignment table and export it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runOpts.ZipMaster != "" {
			cfg.Sources.ZipMaster = runOpts.ZipMaster
		}
		if runOpts.Activity != "" {
			cfg.Sources.RepActivity = runOpts.Activity
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		_, err := runTerritory(ctx, cfg, runOpts, metrics.New())
		return err
	},
}

// runTerritory loads both sources, computes the table and hands it to the
// configured exporters. Metrics are recorded for failures too.
func runTerritory(ctx context.Context, c *config.Config, opts runOptions, m *metrics.Metrics) (*model.RunResult, error) {
	log := zap.L().With(zap.String("component", "run"))

	res, err := computeAndExport(ctx, c, opts)
	if err != nil {
		m.RecordRunFailure()
		writeMetricsTextfile(c, m)
		return nil, err
	}

	logSummary(log, res.Summary)
	m.RecordRun(res.Summary)
	writeMetricsTextfile(c, m)

	if !opts.NoAlerts {
		alerter := monitoring.NewAlerter(c.Monitoring)
		alerts := alerter.Evaluate(res.Summary)
		for _, a := range alerts {
			log.Warn("run quality alert",
				zap.String("type", string(a.Type)),
				zap.String("severity", a.Severity),
				zap.String("message", a.Message),
			)
		}
		alerter.SendAlerts(ctx, alerts)
	}

	if opts.SummaryOut != "" {
		if err := writeSummary(opts.SummaryOut, res.Summary); err != nil {
			return res, err
		}
	}
	return res, nil
}

func computeAndExport(ctx context.Context, c *config.Config, opts runOptions) (*model.RunResult, error) {
	in, err := loadInput(ctx, c)
	if err != nil {
		return nil, err
	}

	engine, err := territory.NewEngine(c.Territory.Params(),
		territory.WithWorkers(c.Territory.Workers),
		territory.WithRequireActiveStatus(c.Territory.RequireActiveStatus),
	)
	if err != nil {
		return nil, err
	}

	res, err := engine.Run(ctx, in)
	if err != nil {
		return nil, eris.Wrap(err, "run engine")
	}

	if opts.DryRun {
		zap.L().Info("dry run: skipping exporters")
		return res, nil
	}

	exporters, closeFn, err := buildExporters(ctx, c)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if len(exporters) == 0 {
		zap.L().Warn("no exporters configured; the table was computed but not written")
		return res, nil
	}
	if err := exporters.Export(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// loadInput resolves and reads the ZIP master, then the activity snapshot
// against it.
func loadInput(ctx context.Context, c *config.Config) (territory.Input, error) {
	resolver := fetcher.NewResolver(fetcher.ResolverOptions{
		TempDir: c.Sources.TempDir,
		HTTP: fetcher.HTTPOptions{
			UserAgent: c.Sources.UserAgent,
			Timeout:   time.Duration(c.Sources.HTTPTimeoutSecs) * time.Second,
		},
		FTP: fetcher.FTPOptions{
			Timeout: time.Duration(c.Sources.HTTPTimeoutSecs) * time.Second,
		},
	})

	zipSrc, err := resolver.Resolve(ctx, c.Sources.ZipMaster)
	if err != nil {
		return territory.Input{}, eris.Wrap(err, "resolve zip master")
	}
	defer zipSrc.Close()

	master, zipStats, err := ingest.LoadZipMaster(ctx, zipSrc.Path, ingest.ZipMasterOptions{
		Sheet:        c.Sources.ZipMasterSheet,
		PadShortZips: c.Sources.PadShortZips,
	})
	if err != nil {
		return territory.Input{}, err
	}

	actSrc, err := resolver.Resolve(ctx, c.Sources.RepActivity)
	if err != nil {
		return territory.Input{}, eris.Wrap(err, "resolve rep activity")
	}
	defer actSrc.Close()

	rows, actStats, err := ingest.LoadActivity(ctx, actSrc.Path, master, ingest.ActivityOptions{
		Sheet:        c.Sources.ActivitySheet,
		PadShortZips: c.Sources.PadShortZips,
	})
	if err != nil {
		return territory.Input{}, err
	}

	return territory.Input{
		Master:        master,
		Activity:      rows,
		ZipMasterRows: zipStats.Rows,
		ActivityRows:  actStats.Rows,
		Rejected: map[string]*zipcode.Rejections{
			model.SourceZipMaster:   zipStats.Rejected,
			model.SourceRepActivity: actStats.Rejected,
		},
	}, nil
}

// buildExporters returns the store (when enabled) followed by every file
// exporter with a configured path.
func buildExporters(ctx context.Context, c *config.Config) (export.Multi, func(), error) {
	var (
		exporters export.Multi
		closeFn   = func() {}
	)

	if c.Store.Driver != store.DriverNone {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, closeFn, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, closeFn, eris.Wrap(err, "migrate store")
		}
		exporters = append(exporters, st)
		closeFn = func() { st.Close() }
	}
	if c.Export.CSVPath != "" {
		exporters = append(exporters, export.CSV{Path: c.Export.CSVPath})
	}
	if c.Export.XLSXPath != "" {
		exporters = append(exporters, export.XLSX{Path: c.Export.XLSXPath})
	}
	if c.Export.GeoJSONPath != "" {
		exporters = append(exporters, export.GeoJSON{Path: c.Export.GeoJSONPath})
	}
	return exporters, closeFn, nil
}

func logSummary(log *zap.Logger, s model.RunSummary) {
	log.Info("territory run complete",
		zap.String("run_id", s.RunID),
		zap.Int("zips_considered", s.ZipsConsidered),
		zap.Int("active", s.Active),
		zap.Int("prospective", s.Prospective),
		zap.Int("unassigned", s.Unassigned),
		zap.Int("rows_processed", s.RowsProcessed()),
		zap.Int("activity_pairs", s.ActivityPairs),
		zap.Duration("elapsed", s.Duration()),
	)
	if n := s.RejectedTotal(); n > 0 {
		log.Warn("input rows rejected",
			zap.Int("rejected_total", n),
			zap.Any("rejected", s.Rejected),
		)
	}
}

// writeSummary writes the run summary as YAML; "-" means stdout.
func writeSummary(path string, s model.RunSummary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "marshal run summary")
	}
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return eris.Wrap(err, "write run summary")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "write run summary %s", path)
}

func writeMetricsTextfile(c *config.Config, m *metrics.Metrics) {
	if c.Metrics.Textfile == "" {
		return
	}
	if err := m.WriteTextfile(c.Metrics.Textfile); err != nil {
		zap.L().Warn("metrics textfile not written", zap.Error(err))
	}
}

func init() {
	runCmd.Flags().StringVar(&runOpts.ZipMaster, "zip-master", "", "ZIP master source (overrides sources.zip_master)")
	runCmd.Flags().StringVar(&runOpts.Activity, "activity", "", "rep activity source (overrides sources.rep_activity)")
	runCmd.Flags().StringVar(&runOpts.SummaryOut, "summary-out", "", `write the run summary as YAML to this path ("-" for stdout)`)
	runCmd.Flags().BoolVar(&runOpts.DryRun, "dry-run", false, "compute the table without exporting it")
	runCmd.Flags().BoolVar(&runOpts.NoAlerts, "no-alerts", false, "skip run quality alerts")
	rootCmd.AddCommand(runCmd)
}
