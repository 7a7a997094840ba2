package portal

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/model"
)

// ensureOptions audits every dropdown the download depends on and corrects
// any that drifted. The portal resets some of them between partners, so the
// audit runs before every download attempt.
func (e *Engine) ensureOptions(ctx context.Context, job model.Job) error {
	sel := e.cfg.Selectors

	type optionCheck struct {
		name     string
		selector string
		want     string // value prefix that proves the option is set
		option   string // visible text of the corrective pick
	}
	checks := []optionCheck{
		{"reporter", sel.Reporter, job.Reporter, job.Reporter},
		{"trade type", sel.TradeType, string(job.Flow)[:1], string(job.Flow)},
		{"yearly time series", sel.OutputType, "TSY", "Yearly time series"},
		{"by product", sel.OutputOption, "ByProduct", "by product"},
		{"product cluster", sel.ClusterLevel, job.Cluster.SelectValue(), job.Cluster.OptionLabel()},
		{"indicator", sel.Indicator, string(job.Measure)[:1], string(job.Measure)},
	}
	if job.Measure == model.MeasureValues {
		checks = append(checks, optionCheck{"currency", sel.Currency, "USD", "US Dollar"})
	}
	checks = append(checks, optionCheck{"page size", sel.PageSize, "12", "12 per page"})

	for _, c := range checks {
		if err := e.auditSelect(ctx, c.selector, c.want, c.option, c.name); err != nil {
			return err
		}
	}
	return nil
}

// auditSelect verifies a dropdown's current value starts with want and picks
// the option with the given visible text when it does not.
func (e *Engine) auditSelect(ctx context.Context, selector, want, option, name string) error {
	val, err := e.form.Value(ctx, selector, e.waits.Check)
	if err == nil && strings.HasPrefix(val, want) {
		zap.L().Info("option verified", zap.String("option", name))
		return nil
	}
	if err != nil && !form.IsUIFailure(err) {
		return err
	}
	if err := e.form.SelectByText(ctx, selector, option, e.waits.Check); err != nil {
		return err
	}
	zap.L().Info("option corrected", zap.String("option", name), zap.String("picked", option))
	return nil
}
