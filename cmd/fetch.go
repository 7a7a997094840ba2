package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/ledger"
	"github.com/osulel12/itc-parser/internal/model"
	"github.com/osulel12/itc-parser/internal/notify"
	"github.com/osulel12/itc-parser/internal/portal"
	"github.com/osulel12/itc-parser/internal/store"
)

var (
	fetchReporters []string
	fetchFlows     []string
	fetchMeasures  []string
	fetchTariff    bool
	fetchFirstRun  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download trade time series for a set of reporters",
	Long:  "Walks every reporter through the requested flows and measures. The values pass establishes the per-reporter partner list; the quantities pass replays it. With --tariff the download runs at the tariff line instead of the 6 digit cluster.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		notifier, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return err
		}

		cluster := model.ClusterSixDigit
		measures := fetchMeasures
		if fetchTariff {
			cluster = model.ClusterTariffLine
			// The tariff line pass only exists for values.
			measures = []string{string(model.MeasureValues)}
		}

		firstRun := fetchFirstRun
		for _, reporter := range fetchReporters {
			for _, flow := range fetchFlows {
				for _, measure := range measures {
					job := model.Job{
						Reporter: reporter,
						Flow:     model.Direction(flow),
						Measure:  model.Measure(measure),
						Cluster:  cluster,
						FirstRun: firstRun,
					}
					firstRun = false
					if err := runJob(ctx, st, notifier, job); err != nil {
						return err
					}
				}
			}
		}
		return nil
	},
}

// runJob runs one job in a fresh browser session. The browser is torn down
// between jobs so a poisoned session never bleeds into the next pass.
func runJob(ctx context.Context, st store.Store, notifier notify.Notifier, job model.Job) error {
	runID := uuid.NewString()
	zap.L().Info("job starting",
		zap.String("run_id", runID),
		zap.String("reporter", job.Reporter),
		zap.String("flow", string(job.Flow)),
		zap.String("measure", string(job.Measure)),
		zap.String("cluster", string(job.Cluster)))

	downloadDir := filepath.Join(cfg.Download.Dir, job.FolderName())
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return eris.Wrapf(err, "create download dir %s", downloadDir)
	}

	selectors := portal.DefaultSelectors()
	if cfg.Portal.SelectorsFile != "" {
		var err error
		selectors, err = portal.LoadSelectors(cfg.Portal.SelectorsFile)
		if err != nil {
			return err
		}
	}

	browser, err := form.NewChrome(ctx, form.BrowserOptions{
		Headless:    cfg.Portal.Headless,
		Proxy:       cfg.Portal.Proxy,
		UserAgent:   cfg.Portal.UserAgent,
		DownloadDir: downloadDir,
	})
	if err != nil {
		return err
	}
	defer browser.Close()

	filePattern := cfg.Download.FilePattern
	if job.Cluster == model.ClusterTariffLine {
		filePattern = cfg.Download.TariffFilePattern
	}

	results := ledger.New(filepath.Join(cfg.Download.Dir, job.ResultsFile()))
	mirror := ledger.New(filepath.Join(cfg.Download.Dir, "json_mirror_data.json"))

	engine := portal.New(browser, st, notifier, results, mirror, portal.Config{
		URL:          cfg.Portal.URL,
		Username:     cfg.Portal.Username,
		Password:     cfg.Portal.Password,
		ChatID:       cfg.Telegram.ChatID,
		DownloadRoot: cfg.Download.Dir,
		FilePattern:  filePattern,
		Selectors:    selectors,
	})

	if err := engine.Run(ctx, job); err != nil {
		return eris.Wrapf(err, "job %s", runID)
	}
	zap.L().Info("job finished", zap.String("run_id", runID))
	return nil
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchReporters, "reporters", nil, "reporter countries (required)")
	fetchCmd.Flags().StringSliceVar(&fetchFlows, "flows", []string{"Imports", "Exports"}, "trade flows")
	fetchCmd.Flags().StringSliceVar(&fetchMeasures, "measures", []string{"Values", "Quantities"}, "measures, values first")
	fetchCmd.Flags().BoolVar(&fetchTariff, "tariff", false, "download at the tariff line")
	fetchCmd.Flags().BoolVar(&fetchFirstRun, "first-run", false, "register the operator session before starting")
	_ = fetchCmd.MarkFlagRequired("reporters")
	rootCmd.AddCommand(fetchCmd)
}
