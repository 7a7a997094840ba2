package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/model"
)

// outcome classifies one download attempt for a partner.
type outcome int

const (
	// outcomeDownloaded means the file landed on disk within the window.
	outcomeDownloaded outcome = iota
	// outcomeEmpty means the totals row summed to zero, nothing to download.
	outcomeEmpty
	// outcomeAlreadyPresent means the file was downloaded by an earlier run.
	outcomeAlreadyPresent
	// outcomeTimedOut means the click landed but no file appeared in time.
	outcomeTimedOut
)

// Run executes one job end to end: session setup, captcha gate, reporter
// pick, then the partner progression with checkpointing. It returns only on
// completion, cancellation, or a non-recoverable error.
func (e *Engine) Run(ctx context.Context, job model.Job) error {
	dir := filepath.Join(e.cfg.DownloadRoot, job.FolderName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "portal: create download dir %s", dir)
	}

	if err := e.form.Navigate(ctx, e.cfg.URL); err != nil {
		return err
	}
	// The tariff line pass enters straight through login; the news dialog
	// does not come up on its entry path.
	if job.Cluster != model.ClusterTariffLine {
		if err := e.dismissNews(ctx, false); err != nil {
			return err
		}
	}

	if err := e.login(ctx); err != nil {
		return err
	}
	if job.FirstRun {
		if err := e.store.RegisterSession(ctx, e.cfg.ChatID); err != nil {
			return err
		}
	}

	if err := e.captchaGate(ctx, job.Flow, "", jobLabel(job)); err != nil {
		return err
	}

	if err := e.selectReporter(ctx, job); err != nil {
		return err
	}

	if job.Measure == model.MeasureValues && job.Cluster == model.ClusterSixDigit {
		if err := e.auditMirrorYears(ctx, job.Reporter); err != nil {
			return err
		}
	}

	partners, err := e.partnerSequence(ctx, job)
	if err != nil {
		return err
	}

	return e.walkPartners(ctx, job, partners, dir)
}

// jobLabel names the job in operator notifications.
func jobLabel(job model.Job) string {
	measure := string(job.Measure)
	if job.Cluster == model.ClusterTariffLine {
		measure = "tariff line " + measure
	}
	return fmt.Sprintf("%s %s %s", job.Reporter, measure, job.Flow)
}

// selectReporter picks the reporter country, running the recovery procedure
// once when the dropdown is broken or missing.
func (e *Engine) selectReporter(ctx context.Context, job model.Job) error {
	sel := e.cfg.Selectors
	err := e.form.SelectByText(ctx, sel.Reporter, job.Reporter, e.waits.Nav)
	if err == nil {
		zap.L().Info("reporter selected", zap.String("reporter", job.Reporter))
		return nil
	}
	if !form.IsUIFailure(err) {
		return err
	}
	zap.L().Warn("reporter pick failed, recovering", zap.String("reporter", job.Reporter), zap.Error(err))

	if err := e.form.Navigate(ctx, e.cfg.URL); err != nil {
		return err
	}
	if err := e.recoverSession(ctx, job.Flow, job.Reporter); err != nil {
		return err
	}
	if err := e.form.SelectByText(ctx, sel.Reporter, job.Reporter, e.waits.Nav); err != nil {
		return err
	}
	zap.L().Info("reporter selected", zap.String("reporter", job.Reporter))
	return nil
}

// partnerSequence builds the ordered partner list for the job. A repair job
// brings its own list. A quantities pass replays the partners the values
// pass recorded. Everything else scrapes the partner dropdown, dropping the
// "All" aggregate. When a resume flag is set the list is truncated to start
// at the checkpointed partner, inclusive, and the flag is cleared.
func (e *Engine) partnerSequence(ctx context.Context, job model.Job) ([]string, error) {
	if len(job.Partners) > 0 {
		zap.L().Info("re-downloading explicit partner list", zap.Int("count", len(job.Partners)))
		return job.Partners, nil
	}

	var partners []string
	if job.Measure == model.MeasureQuantities && job.Cluster == model.ClusterSixDigit {
		entries, err := e.results.Entries(job.Reporter)
		if err != nil {
			return nil, err
		}
		partners = entries
	} else {
		options, err := e.form.TextAll(ctx, e.cfg.Selectors.PartnerOptions, e.waits.Nav)
		if err != nil {
			return nil, err
		}
		for _, opt := range options {
			if opt == "All" {
				continue
			}
			partners = append(partners, norm.NFC.String(opt))
		}
	}

	checkpoint, resume, err := e.store.ResumePoint(ctx, e.cfg.ChatID)
	if err != nil {
		return nil, err
	}
	if resume {
		if idx := slices.Index(partners, checkpoint); idx >= 0 {
			zap.L().Info("resuming partner list", zap.String("from", checkpoint))
			partners = partners[idx:]
		} else {
			zap.L().Warn("checkpointed partner not in list, starting over", zap.String("partner", checkpoint))
		}
		if err := e.store.ClearResumeFlag(ctx, e.cfg.ChatID); err != nil {
			return nil, err
		}
	}
	return partners, nil
}

// walkPartners checkpoints and downloads each partner in order.
func (e *Engine) walkPartners(ctx context.Context, job model.Job, partners []string, dir string) error {
	for _, partner := range partners {
		if err := e.store.SetCurrentPartner(ctx, e.cfg.ChatID, partner); err != nil {
			return err
		}
		if err := e.downloadPartner(ctx, job, partner, dir); err != nil {
			return err
		}
	}
	return nil
}

// downloadPartner retries one partner until it settles: downloaded, empty,
// or already present. UI breakage routes through the recovery procedure and
// another attempt; the retry is unbounded because a partner left behind
// would silently hole the dataset.
func (e *Engine) downloadPartner(ctx context.Context, job model.Job, partner, dir string) error {
	for attempt := 1; ; attempt++ {
		out, err := e.attemptPartner(ctx, job, partner, dir)
		if err == nil {
			if out == outcomeTimedOut {
				continue
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !form.IsUIFailure(err) {
			return err
		}
		zap.L().Warn("partner attempt failed",
			zap.String("reporter", job.Reporter),
			zap.String("partner", partner),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if err := e.form.Navigate(ctx, e.cfg.URL); err != nil {
			return err
		}
		if err := e.recoverSession(ctx, job.Flow, job.Reporter); err != nil {
			if form.IsUIFailure(err) {
				continue
			}
			return err
		}
	}
}

// attemptPartner runs one full attempt for a partner: pick it, audit the
// options, apply the zero filter where it holds, trigger the download and
// wait for the file.
func (e *Engine) attemptPartner(ctx context.Context, job model.Job, partner, dir string) (outcome, error) {
	sel := e.cfg.Selectors

	if err := e.form.SelectByText(ctx, sel.Partner, partner, e.waits.Nav); err != nil {
		return 0, err
	}
	zap.L().Info("partner picked", zap.String("partner", partner), zap.String("reporter", job.Reporter))

	if err := e.ensureOptions(ctx, job); err != nil {
		return 0, err
	}

	fileName := fmt.Sprintf(e.cfg.FilePattern, model.SanitizeName(job.Reporter), model.SanitizeName(partner))
	path := filepath.Join(dir, fileName)

	// Only the six digit values pass maintains the results ledger and the
	// zero filter; the other passes replay or extend what it established.
	tracksLedger := job.Measure == model.MeasureValues && job.Cluster == model.ClusterSixDigit

	if tracksLedger {
		total, err := e.aggregateTotal(ctx, partner)
		if err != nil {
			return 0, err
		}
		if total == 0 {
			zap.L().Info("no data for partner", zap.String("partner", partner))
			if err := e.results.Remove(job.Reporter, partner); err != nil {
				return 0, err
			}
			return outcomeEmpty, nil
		}
	}

	if fileExists(path) {
		zap.L().Info("file already downloaded", zap.String("file", fileName))
		return outcomeAlreadyPresent, nil
	}

	zap.L().Info("downloading file", zap.String("file", fileName))
	if err := e.form.Click(ctx, sel.DownloadButton, e.waits.DownloadBtn); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(e.waits.DownloadWindow)
	for time.Now().Before(deadline) {
		if fileExists(path) {
			if tracksLedger {
				if err := e.results.Record(job.Reporter, partner); err != nil {
					return 0, err
				}
			}
			zap.L().Info("file downloaded", zap.String("file", fileName))
			return outcomeDownloaded, nil
		}
		zap.L().Info("waiting for download", zap.String("file", fileName))
		if err := sleep(ctx, e.waits.DownloadTick); err != nil {
			return 0, err
		}
	}
	return outcomeTimedOut, nil
}

// aggregateTotal sums the totals row across the year columns that belong to
// the picked partner. The column span differs between the World aggregate
// and a bilateral partner; the grid's header element carries it.
func (e *Engine) aggregateTotal(ctx context.Context, partner string) (int64, error) {
	sel := e.cfg.Selectors

	border := sel.BilateralColspan
	if partner == "World" {
		border = sel.WorldColspan
	}
	span, err := e.form.Attribute(ctx, border, "colspan", e.waits.Check)
	if err != nil {
		return 0, err
	}
	cols, err := strconv.Atoi(strings.TrimSpace(span))
	if err != nil {
		return 0, eris.Wrapf(err, "portal: colspan %q", span)
	}

	cells, err := e.form.TextAll(ctx, sel.TotalsCells, e.waits.Check)
	if err != nil {
		return 0, err
	}
	if len(cells) <= yearColsOffset {
		return 0, nil
	}
	end := yearColsOffset + cols
	if end > len(cells) {
		end = len(cells)
	}

	var total int64
	for _, cell := range cells[yearColsOffset:end] {
		clean := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
		if !digitsOnly(clean) {
			continue
		}
		v, err := strconv.ParseInt(clean, 10, 64)
		if err != nil {
			continue
		}
		total += v
	}
	return total, nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
