package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/model"
	"github.com/osulel12/itc-parser/internal/notify"
)

var repairFile string

// errorFile is the hand-maintained list of partners a previous run lost.
type errorFile struct {
	Reporter string   `json:"reporter_name"`
	Flow     string   `json:"type_flow"`
	Partners []string `json:"list_partner"`
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Re-download a known list of failed partners",
	Long:  "Reads an error file naming a reporter, a flow and the partners whose quantities download failed, and replays exactly those partners.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		data, err := os.ReadFile(repairFile)
		if err != nil {
			return eris.Wrapf(err, "read error file %s", repairFile)
		}
		var ef errorFile
		if err := json.Unmarshal(data, &ef); err != nil {
			return eris.Wrapf(err, "parse error file %s", repairFile)
		}
		if ef.Reporter == "" || len(ef.Partners) == 0 {
			return eris.Errorf("error file %s names no reporter or no partners", repairFile)
		}

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

		job := model.Job{
			Reporter: ef.Reporter,
			Flow:     model.Direction(ef.Flow),
			Measure:  model.MeasureQuantities,
			Cluster:  model.ClusterSixDigit,
			Partners: ef.Partners,
		}
		zap.L().Info("repair starting",
			zap.String("reporter", ef.Reporter),
			zap.String("flow", ef.Flow),
			zap.Int("partners", len(ef.Partners)))

		return runJob(ctx, st, notifier, job)
	},
}

func init() {
	repairCmd.Flags().StringVar(&repairFile, "file", "Imports_error_itc.json", "error file to replay")
	rootCmd.AddCommand(repairCmd)
}
